// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBus_DeliversToKindOnly(t *testing.T) {
	bus := NewBus(nil)
	var unauthorized, forbidden int
	bus.Subscribe(Unauthorized, func(Event) { unauthorized++ })
	bus.Subscribe(Forbidden, func(Event) { forbidden++ })

	bus.Publish(Event{Kind: Unauthorized, Status: 401})

	assert.Equal(t, 1, unauthorized)
	assert.Equal(t, 0, forbidden)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(nil)
	calls := 0
	unsubscribe := bus.Subscribe(ServerError, func(Event) { calls++ })

	bus.Publish(Event{Kind: ServerError})
	unsubscribe()
	unsubscribe()
	bus.Publish(Event{Kind: ServerError})

	assert.Equal(t, 1, calls)
}

func TestBus_PanickingSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := NewBus(nil)
	var order []string
	bus.Subscribe(Unauthorized, func(Event) { order = append(order, "first") })
	bus.Subscribe(Unauthorized, func(Event) { panic("broken subscriber") })
	bus.Subscribe(Unauthorized, func(Event) { order = append(order, "third") })

	assert.NotPanics(t, func() { bus.Publish(Event{Kind: Unauthorized}) })
	assert.Equal(t, []string{"first", "third"}, order)
}
