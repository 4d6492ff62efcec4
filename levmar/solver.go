// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package levmar

// lmSolver minimizes 𝛘²(𝐚) with the Levenberg-Marquardt damped iteration.
//
// The curvature matrix 𝛂 = ½𝜵²𝛘² (Gauss-Newton approximation) and the
// gradient 𝛃 = -½𝜵𝛘² define the Newton step 𝛂𝛅 = 𝛃. Damping replaces 𝛂
// with 𝛂′ where 𝛂′ⱼⱼ = 𝛂ⱼⱼ(1+𝛌):
//   - 𝛌 → 0 recovers the Gauss-Newton step, fast near the minimum
//   - 𝛌 ≫ 1 shortens 𝛅 towards steepest descent, robust far from it
//
// Each iteration solves 𝛂′𝛅 = 𝛃 at the accepted parameters and scores the
// trial point 𝐚 + 𝛅. An improved 𝛘² accepts the trial and relaxes 𝛌 by 10,
// otherwise the trial is discarded and 𝛌 tightens by 10. Convergence is
// declared after ConvergeStreak consecutive accepted steps whose relative
// improvement stays below Tolerance, after which one undamped solve at the
// solution yields the inverse curvature for the covariance.
//
// W.H. Press et al., 'Numerical Recipes', Modeling of Data.
type lmSolver struct {
	fitter *Fitter
	ctx    *lmCtx
}

// mainLoop drives the damping adaptation until convergence,
// budget exhaustion or a numerical failure.
func (ls *lmSolver) mainLoop() (status Status) {

	f, ctx := ls.fitter, ls.ctx
	stop := f.Stop

	// Score the initial guess once: it becomes the first accepted state.
	if ctx.chisq, status = ls.score(ctx.a, ctx.alpha, ctx.beta); status != scoreOK {
		return
	}

	for {
		if ctx.iter++; ctx.iter > stop.MaxIterations {
			ctx.iter--
			return ExceedMaxIter
		}

		if status = ls.solve(ctx.lambda); status != scoreOK {
			return
		}

		// Trial parameters: accepted plus increment, held entries untouched.
		copy(ctx.try, ctx.a)
		for ci, pi := range ctx.free {
			ctx.try[pi] += ctx.delta[ci]
		}

		trial, st := ls.score(ctx.try, ctx.alphaTry, ctx.betaTry)
		if st != scoreOK {
			return st
		}

		accept := trial < ctx.chisq
		f.logger.trial(ctx, trial, accept)

		if !accept {
			ctx.lambda *= lambdaGrow
			continue
		}

		if (ctx.chisq-trial)/ctx.chisq < stop.Tolerance {
			ctx.streak++
		} else {
			ctx.streak = 0
		}

		// The trial scoring already assembled 𝛂 and 𝛃 at the new accepted
		// parameters, adopt them instead of re-assembling.
		ctx.lambda *= lambdaShrink
		ctx.alpha, ctx.alphaTry = ctx.alphaTry, ctx.alpha
		ctx.beta, ctx.betaTry = ctx.betaTry, ctx.beta
		copy(ctx.a, ctx.try)
		ctx.chisq = trial

		if ctx.streak >= stop.ConvergeStreak {
			// Undamped solve at the solution: ctx.damped becomes 𝛂⁻¹,
			// the raw covariance of the estimate.
			if st = ls.solve(zero); st != scoreOK {
				return st
			}
			return Converged
		}
	}
}

// solve eliminates the damped system 𝛂′𝛅 = 𝛃 in the free subspace.
// On return ctx.delta holds the increment and ctx.damped the inverse 𝛂′⁻¹.
func (ls *lmSolver) solve(lambda float64) Status {
	ctx := ls.ctx
	pf := len(ctx.free)
	copy(ctx.damped, ctx.alpha)
	for j := 0; j < pf; j++ {
		ctx.damped[j*pf+j] *= one + lambda
	}
	copy(ctx.delta, ctx.beta)
	return gaussj(pf, ctx.damped, ctx.delta)
}

// provisional exposes the last accepted state of a non-converged fit.
// The estimate may be inspected but is never marked available.
func (ls *lmSolver) provisional() *Result {
	ctx := ls.ctx
	return &Result{
		Params: append([]float64(nil), ctx.a...),
		ChiSq:  ctx.chisq,
		Summary: Summary{
			Status:  ExceedMaxIter,
			NumIter: ctx.iter,
			Lambda:  ctx.lambda,
		},
	}
}
