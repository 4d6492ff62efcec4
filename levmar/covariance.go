// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package levmar

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// finalize scatters the compact inverse curvature of a converged fit back
// to the full parameter space and attaches the fit statistics.
//
// Held parameters get zero variance and zero cross-covariance and consume
// no degrees of freedom: dof is N minus the free parameter count. When the
// problem asks for covariance adjustment every entry is rescaled by the
// reduced chi-square 𝛘²/dof, the unbiased residual variance estimate for
// sigmas that are relative weights rather than true standard deviations.
// The significance p is the chi-square CDF at 𝛘² with dof degrees of
// freedom and the fit quality is its exact complement q = 1 - p.
func (ls *lmSolver) finalize() *Result {

	f, ctx := ls.fitter, ls.ctx
	free, pf := ctx.free, len(ctx.free)

	dof := float64(f.n - pf)
	mse, p, q := math.NaN(), math.NaN(), math.NaN()
	if dof > zero {
		mse = ctx.chisq / dof
		p = distuv.ChiSquared{K: dof}.CDF(ctx.chisq)
		q = one - p
	}

	scale := one
	if f.AdjustCovariance && dof > zero {
		scale = mse
	}

	covar := mat.NewSymDense(f.p, nil)
	for ci, pi := range free {
		for cj := ci; cj < pf; cj++ {
			covar.SetSym(pi, free[cj], scale*ctx.damped[ci*pf+cj])
		}
	}

	return &Result{
		OK:     true,
		Params: append([]float64(nil), ctx.a...),
		Covar:  covar,
		ChiSq:  ctx.chisq,
		MSE:    mse,
		P:      p,
		Q:      q,
		Summary: Summary{
			Status:  Converged,
			NumIter: ctx.iter,
			Lambda:  ctx.lambda,
		},
	}
}
