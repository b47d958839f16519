// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package apiclient

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// CancelToken aborts the requests issued with its context.
type CancelToken struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewCancelToken derives a cancellable scope from parent.
func NewCancelToken(parent context.Context) *CancelToken {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	return &CancelToken{ctx: ctx, cancel: cancel}
}

// Context is passed to Request; cancelling the token cancels it.
func (t *CancelToken) Context() context.Context { return t.ctx }

// Cancel aborts in-flight and future requests using this token. Safe to
// call more than once.
func (t *CancelToken) Cancel() { t.cancel() }

// Cancelled reports whether Cancel has been called or the parent ended.
func (t *CancelToken) Cancelled() bool { return t.ctx.Err() != nil }

// Call is one request of a Batch.
type Call struct {
	Method  string
	Path    string
	Body    any
	Options *RequestOptions
}

// BatchResult collects the results of a Batch in call order.
type BatchResult struct {
	Results   []Result
	Succeeded int
	Failed    int
}

// Batch issues calls concurrently, at most Config.MaxConcurrency at a
// time. A failing call never aborts the others.
func (c *Client) Batch(ctx context.Context, calls []Call) BatchResult {
	results := make([]Result, len(calls))

	var g errgroup.Group
	g.SetLimit(c.config.MaxConcurrency)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = c.Request(ctx, call.Method, call.Path, call.Body, call.Options)
			return nil
		})
	}
	_ = g.Wait()

	out := BatchResult{Results: results}
	for _, r := range results {
		if r.Success {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	return out
}
