// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package numdiff estimates model Jacobians by finite differences, for
// model evaluators that cannot supply analytic parameter derivatives.
package numdiff

import (
	"errors"
	"math"
)

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)

type Method int

const (
	// Forward use the first order accuracy forward difference.
	Forward Method = iota
	// Central use the second order accuracy central difference.
	Central
)

// JacSpec estimates the Jacobian ∂𝒇ₖ/∂𝐚ⱼ of a vector-valued model with
// respect to its parameter vector 𝐚.
//
// The parameter vector is perturbed one component at a time and restored
// afterwards, so the same slice may be shared with the caller. The step
// size for component j defaults to 𝚎𝚙𝚜¹ᐟ² (Forward) or 𝚎𝚙𝚜¹ᐟ³ (Central)
// scaled by 𝚖𝚊𝚡(1,|𝐚ⱼ|).
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
type JacSpec struct {
	// N is the parameter count, M the number of model outputs.
	N, M int
	// Object evaluates the model at parameter vector a.
	// The result is stored in an m-vector y.
	Object func(a, y []float64)
	// Finite difference method to use.
	Method Method
	// Relative step size used to compute the absolute step size as
	// h = RelStep * sign(a0) * abs(a0). Selected automatically when zero.
	RelStep float64
	// Absolute step size to use. Takes precedence over RelStep.
	// For the Central method the sign of AbsStep is ignored.
	AbsStep float64
	jacCtx
}

type jacCtx struct {
	f0, fx []float64
	step   []float64
}

// Check the parameters and initialize jacCtx.
func (js *JacSpec) Check(a0, jac []float64) (err error) {
	switch {
	case js.N <= 0 || js.M <= 0:
		err = errors.New("negative dimensions")
	case js.Method != Forward && js.Method != Central:
		err = errors.New("unknown method")
	case js.Object == nil:
		err = errors.New("object function is required")
	case js.N != len(a0):
		return errors.New("invalid a0 dimensions")
	case js.N*js.M != len(jac):
		return errors.New("invalid jac dimensions")
	}

	if len(js.fx) != js.M*(int(js.Method)+1) {
		js.f0 = make([]float64, js.M)
		js.fx = make([]float64, js.M*(int(js.Method)+1))
	}
	if len(js.step) != js.N {
		js.step = make([]float64, js.N)
	}
	return
}

// Jacobian fills jac with the row-major M×N finite-difference estimate of
// ∂𝒇ₖ/∂𝐚ⱼ at a0.
func (js *JacSpec) Jacobian(a0, jac []float64) error {
	if err := js.Check(a0, jac); err != nil {
		return err
	}
	js.absoluteStep(a0)
	if js.Method == Central {
		js.approxCentral(a0, jac)
	} else {
		js.approxForward(a0, jac)
	}
	return nil
}

func (js *JacSpec) absoluteStep(a0 []float64) {
	h := js.step
	if len(h) != len(a0) {
		panic("bound check error")
	}

	var eps float64
	switch js.Method {
	case Forward:
		eps = sqrtEps
	case Central:
		eps = cubeEps
	default:
		panic("unknown method")
	}

	abs, rel := js.AbsStep, js.RelStep
	if abs == 0 && rel == 0 {
		for j, v := range a0 {
			h[j] = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
		}
	} else {
		for j, v := range a0 {
			s := abs
			if s == 0 {
				s = math.Copysign(rel, v) * math.Abs(v)
			}
			// Guard against steps vanishing in the rounding of a0+h.
			if d := (v + s) - v; d == 0 {
				s = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
			}
			h[j] = s
		}
	}
	if js.Method == Central {
		for j, v := range h {
			h[j] = math.Abs(v)
		}
	}
}

func (js *JacSpec) approxForward(a0, jac []float64) {
	f0, fx, h, n := js.f0, js.fx, js.step, js.N
	if len(h) != len(a0) || len(f0) != len(fx) {
		panic("bound check error")
	}

	fun := js.Object
	fun(a0, f0)
	for j, s := range h {
		t := a0[j]
		a0[j] = t + s
		fun(a0, fx)
		a0[j] = t
		d := 1.0 / s
		for k := range f0 {
			jac[j+k*n] = (fx[k] - f0[k]) * d
		}
	}
}

func (js *JacSpec) approxCentral(a0, jac []float64) {
	h, n, m := js.step, js.N, js.M
	f1, f2 := js.fx[:m], js.fx[m:]
	if len(h) != len(a0) || len(f1) != len(f2) {
		panic("bound check error")
	}

	fun := js.Object
	for j, s := range h {
		t := a0[j]
		a0[j] = t - s
		fun(a0, f1)
		a0[j] = t + s
		fun(a0, f2)
		a0[j] = t
		d := 1.0 / (2 * s)
		for k := range f1 {
			jac[j+k*n] = (f2[k] - f1[k]) * d
		}
	}
}
