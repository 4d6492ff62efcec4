// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package levmar

import (
	"github.com/curioloop/fitting/numdiff"
)

// ModelFunc evaluates the model outputs 𝒇(𝐱;𝐚) at one sample point.
type ModelFunc func(point, params, pred []float64)

// FuncEvaluator adapts a derivative-free model function into an Evaluator
// by estimating the parameter Jacobian with finite differences.
//
// Analytic derivatives converge faster and cost one evaluation per sample
// instead of p+1 (Forward) or 2p+1 (Central), prefer them when available.
type FuncEvaluator struct {
	NParams int            // The number of model parameters
	NDims   int            // The dimension of one sample point
	NVars   int            // The number of output components
	Init    []float64      // Initial parameter guess
	Func    ModelFunc      // Model function
	Method  numdiff.Method // Finite difference method

	point []float64
	spec  numdiff.JacSpec
}

func (e *FuncEvaluator) Params() int { return e.NParams }
func (e *FuncEvaluator) Dims() int   { return e.NDims }
func (e *FuncEvaluator) Vars() int   { return e.NVars }

func (e *FuncEvaluator) InitParams() []float64 { return e.Init }

func (e *FuncEvaluator) Evaluate(i int, point, params, pred, jac []float64) error {
	if e.spec.Object == nil {
		e.spec = numdiff.JacSpec{
			N:      e.NParams,
			M:      e.NVars,
			Method: e.Method,
			// The differentiated object closes over the current sample
			// point, the spec itself is reused across samples.
			Object: func(a, y []float64) { e.Func(e.point, a, y) },
		}
	}
	e.point = point
	e.Func(point, params, pred)
	return e.spec.Jacobian(params, jac)
}
