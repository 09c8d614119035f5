// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"testing"
	"time"
)

var testEpoch = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func TestFakeStandsStill(t *testing.T) {
	fake := Fake(testEpoch)
	if got := fake.Now(); !got.Equal(testEpoch) {
		t.Fatalf("Now() = %v, want %v", got, testEpoch)
	}
	if got := fake.Now(); !got.Equal(testEpoch) {
		t.Fatalf("second Now() = %v, want %v", got, testEpoch)
	}
}

func TestFakeAdvanceAndSet(t *testing.T) {
	fake := Fake(testEpoch)

	fake.Advance(90 * time.Second)
	if want := testEpoch.Add(90 * time.Second); !fake.Now().Equal(want) {
		t.Errorf("after Advance: Now() = %v, want %v", fake.Now(), want)
	}

	later := testEpoch.Add(24 * time.Hour)
	fake.Set(later)
	if !fake.Now().Equal(later) {
		t.Errorf("after Set: Now() = %v, want %v", fake.Now(), later)
	}
}

func TestFakeAdvanceNegativePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Advance(-1) did not panic")
		}
	}()
	Fake(testEpoch).Advance(-time.Nanosecond)
}

func TestFakeConcurrentAdvance(t *testing.T) {
	fake := Fake(testEpoch)

	const goroutines = 16
	var waitGroup sync.WaitGroup
	for range goroutines {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			fake.Advance(time.Millisecond)
			_ = fake.Now()
		}()
	}
	waitGroup.Wait()

	if want := testEpoch.Add(goroutines * time.Millisecond); !fake.Now().Equal(want) {
		t.Errorf("Now() = %v, want %v", fake.Now(), want)
	}
}

func TestRealMovesForward(t *testing.T) {
	wall := Real()
	first := wall.Now()
	second := wall.Now()
	if second.Before(first) {
		t.Errorf("real clock went backwards: %v then %v", first, second)
	}
}
