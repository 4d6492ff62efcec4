// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package levmar

import "math"

// gaussj solves the linear system 𝐀𝐱 = 𝐛 by Gauss-Jordan elimination with
// full pivoting, replacing the row-major n×n matrix a with 𝐀⁻¹ and b with
// the solution 𝐱.
//
// Selecting the largest-magnitude remaining element as pivot bounds the
// growth of rounding error; the inverse produced as a by-product of the
// elimination is what the covariance finalization reads back at 𝛌 = 0.
// A zero pivot means the system is singular and is reported as such, no
// alternative pivoting strategy is attempted.
//
// W.H. Press et al., 'Numerical Recipes', Gauss-Jordan elimination.
func gaussj(n int, a, b []float64) Status {

	if n <= 0 || len(a) < n*n || len(b) < n {
		panic("bound check error")
	}

	indxr := make([]int, n)
	indxc := make([]int, n)
	ipiv := make([]int, n)

	for i := 0; i < n; i++ {

		// Search the whole unreduced submatrix for the largest pivot.
		big, irow, icol := zero, -1, -1
		for j := 0; j < n; j++ {
			if ipiv[j] == 1 {
				continue
			}
			for k := 0; k < n; k++ {
				if ipiv[k] == 0 {
					if v := math.Abs(a[j*n+k]); v >= big {
						big, irow, icol = v, j, k
					}
				}
			}
		}
		if icol < 0 || big == zero {
			return SingularMatrix
		}
		ipiv[icol]++

		// Move the pivot onto the diagonal by a row interchange, recording
		// the implied column permutation for the final unscramble.
		if irow != icol {
			r, c := a[irow*n:(irow+1)*n], a[icol*n:(icol+1)*n]
			for k := range r {
				r[k], c[k] = c[k], r[k]
			}
			b[irow], b[icol] = b[icol], b[irow]
		}
		indxr[i], indxc[i] = irow, icol

		piv := a[icol*n+icol]
		if piv == zero {
			return SingularMatrix
		}
		pinv := one / piv
		a[icol*n+icol] = one
		row := a[icol*n : (icol+1)*n]
		for k := range row {
			row[k] *= pinv
		}
		b[icol] *= pinv

		// Eliminate the pivot column from every other row.
		for l := 0; l < n; l++ {
			if l == icol {
				continue
			}
			d := a[l*n+icol]
			a[l*n+icol] = zero
			t := a[l*n : (l+1)*n]
			for k := range t {
				t[k] -= row[k] * d
			}
			b[l] -= b[icol] * d
		}
	}

	// Undo the column interchanges in reverse order to recover 𝐀⁻¹.
	for l := n - 1; l >= 0; l-- {
		if r, c := indxr[l], indxc[l]; r != c {
			for k := 0; k < n; k++ {
				a[k*n+r], a[k*n+c] = a[k*n+c], a[k*n+r]
			}
		}
	}
	return scoreOK
}
