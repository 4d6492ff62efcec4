// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package levmar

import (
	"fmt"
	"io"
	"os"
)

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated (level < 0)
	LogNoop LogLevel = -1
	// LogLast print only one line when the iteration terminates
	LogLast LogLevel = 0
	// LogTrace print lambda and chi-square for every trial step
	LogTrace LogLevel = 1
)

// Logger handles logging output for the fitter.
// Note the writer must be thread-safe.
type Logger struct {
	Level LogLevel
	Msg   io.Writer // Writer to output log messages.
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	if l.Msg == nil {
		l.Msg = os.Stderr
	}
	_, _ = fmt.Fprintf(l.Msg, format, a...)
}

func (l *Logger) trial(ctx *lmCtx, trial float64, accept bool) {
	if !l.enable(LogTrace) {
		return
	}
	verdict := "reject"
	if accept {
		verdict = "accept"
	}
	l.log("levmar: iter %4d  lambda %10.3e  chisq %14.8e  trial %14.8e  %s\n",
		ctx.iter, ctx.lambda, ctx.chisq, trial, verdict)
}

func (l *Logger) last(status Status, ctx *lmCtx) {
	if !l.enable(LogLast) {
		return
	}
	l.log("levmar: done status %d  iter %d  lambda %.3e  chisq %.8e\n",
		status, ctx.iter, ctx.lambda, ctx.chisq)
}
