// Copyright ©2024 the velo authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gtf implements decoding of GTF gene annotation data into
// transcript models. It is not a complete GFF2 parser implementation.
package gtf
