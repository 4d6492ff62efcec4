// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package levmar

// score assembles the Gauss-Newton curvature system at parameters a by a
// single pass over all samples:
//   - 𝛘² = ∑ᵢ wᵢ ∑ₖ rᵢₖ²
//   - 𝛃ⱼ = ∑ᵢ wᵢ ∑ₖ rᵢₖ 𝐉ᵢₖⱼ
//   - 𝛂ⱼₗ = ∑ᵢ wᵢ ∑ₖ 𝐉ᵢₖⱼ 𝐉ᵢₖₗ
//
// where rᵢₖ = yᵢₖ - 𝒇ₖ(𝐱ᵢ;𝐚) and wᵢ = σᵢ⁻². The system is built directly
// in the compact free-parameter subspace via ctx.free, so held parameters
// never contribute rows or columns to the solve. Only the upper triangle
// is accumulated and mirrored afterwards.
func (ls *lmSolver) score(a, alpha, beta []float64) (chisq float64, status Status) {

	f, ctx := ls.fitter, ls.ctx
	free, pf := ctx.free, len(ctx.free)
	pred, jac := ctx.pred, ctx.jac

	if len(alpha) != pf*pf || len(beta) != pf {
		panic("bound check error")
	}

	dzero(alpha)
	dzero(beta)

	p, vars := f.p, f.vars
	for i := 0; i < f.n; i++ {
		point := f.x.RawRowView(i)
		obs := f.y.RawRowView(i)
		if !ls.eval(i, point, a, pred, jac) {
			return zero, EvaluateFailure
		}
		w := one / (f.sig[i] * f.sig[i])
		for k := 0; k < vars; k++ {
			r := obs[k] - pred[k]
			row := jac[k*p : (k+1)*p]
			chisq += w * r * r
			for ci, pi := range free {
				d := w * row[pi]
				beta[ci] += d * r
				ar := alpha[ci*pf : (ci+1)*pf]
				for cj := ci; cj < pf; cj++ {
					ar[cj] += d * row[free[cj]]
				}
			}
		}
	}

	for ci := 1; ci < pf; ci++ {
		for cj := 0; cj < ci; cj++ {
			alpha[ci*pf+cj] = alpha[cj*pf+ci]
		}
	}
	return chisq, scoreOK
}

// eval invokes the model evaluator for one sample,
// mapping panics and errors to an evaluation failure.
func (ls *lmSolver) eval(i int, point, a, pred, jac []float64) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return ls.fitter.Model.Evaluate(i, point, a, pred, jac) == nil
}
