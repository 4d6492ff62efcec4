// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package levmar

import (
	"math"
	"testing"
)

func almostEqual[T float64 | []float64](a, b T, tol float64) bool {
	switch a := any(a).(type) {
	case float64:
		b := any(b).(float64)
		return math.Abs(a-b) <= tol
	case []float64:
		b := any(b).([]float64)
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if math.Abs(a[i]-b[i]) > tol {
				return false
			}
		}
	}
	return true
}

// mulSquare computes the row-major product 𝐀𝐁 of two n×n matrices.
func mulSquare(n int, a, b []float64) []float64 {
	c := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			s := zero
			for k := 0; k < n; k++ {
				s += a[i*n+k] * b[k*n+j]
			}
			c[i*n+j] = s
		}
	}
	return c
}

func TestGaussJordan(t *testing.T) {

	cases := []struct {
		name string
		n    int
		a    []float64
		b    []float64
	}{
		{"spd", 3, []float64{
			4, 2, 0.6,
			2, 1.5, 0.4,
			0.6, 0.4, 0.2,
		}, []float64{1, 2, 3}},
		{"permuted", 2, []float64{
			0, 1,
			1, 0,
		}, []float64{3, 7}},
		{"general", 4, []float64{
			2, -1, 0, 3,
			-1, 4, -1, 0,
			0, -1, 3, -1,
			3, 0, -1, 5,
		}, []float64{1, -2, 0, 4}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			n := c.n
			a := append([]float64(nil), c.a...)
			x := append([]float64(nil), c.b...)

			if st := gaussj(n, a, x); st != scoreOK {
				t.Fatalf("%s: unexpected status %d", c.name, st)
			}

			// 𝐀𝐱 must reproduce 𝐛 and a must now hold 𝐀⁻¹.
			ax := make([]float64, n)
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					ax[i] += c.a[i*n+j] * x[j]
				}
			}
			eye := make([]float64, n*n)
			for i := 0; i < n; i++ {
				eye[i*n+i] = one
			}

			switch {
			case !almostEqual(ax, c.b, 1e-12):
				t.Fatal("bad solution")
			case !almostEqual(mulSquare(n, c.a, a), eye, 1e-12):
				t.Fatal("bad inverse")
			}
		})
	}
}

func TestGaussJordanSingular(t *testing.T) {

	// Rank one system.
	a := []float64{
		1, 2,
		2, 4,
	}
	b := []float64{1, 1}
	if st := gaussj(2, a, b); st != SingularMatrix {
		t.Fatalf("rank deficiency not detected: %d", st)
	}

	// All-zero system.
	a = make([]float64, 9)
	b = make([]float64, 3)
	if st := gaussj(3, a, b); st != SingularMatrix {
		t.Fatalf("zero matrix not detected: %d", st)
	}
}
