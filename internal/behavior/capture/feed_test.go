package capture

import (
	"sync"
	"testing"
)

func TestFeed_PublishInRegistrationOrder(t *testing.T) {
	f := NewFeed()
	var got []int
	f.Subscribe(func(Event) { got = append(got, 1) })
	f.Subscribe(func(Event) { got = append(got, 2) })
	f.Subscribe(func(Event) { got = append(got, 3) })

	f.Publish(Event{Type: EventScroll})

	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", got)
	}
}

func TestFeed_UnsubscribeIsIdempotent(t *testing.T) {
	f := NewFeed()
	calls := 0
	unsub := f.Subscribe(func(Event) { calls++ })
	unsub()
	unsub()

	f.Publish(Event{Type: EventTouch})
	if calls != 0 {
		t.Errorf("calls = %d, want 0", calls)
	}
	if f.Len() != 0 {
		t.Errorf("Len = %d, want 0", f.Len())
	}
}

func TestFeed_UnsubscribeDuringPublish(t *testing.T) {
	f := NewFeed()
	var second func()
	secondCalls := 0
	f.Subscribe(func(Event) { second() })
	second = f.Subscribe(func(Event) { secondCalls++ })

	f.Publish(Event{Type: EventScroll})
	if secondCalls != 0 {
		t.Errorf("handler removed earlier in the same publish was called %d times", secondCalls)
	}
}

func TestFeed_NilHandler(t *testing.T) {
	f := NewFeed()
	unsub := f.Subscribe(nil)
	unsub()
	if f.Len() != 0 {
		t.Errorf("Len = %d, want 0", f.Len())
	}
}

func TestFeed_ConcurrentAccess(t *testing.T) {
	f := NewFeed()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsub := f.Subscribe(func(Event) {})
			unsub()
		}()
		go func() {
			defer wg.Done()
			f.Publish(Event{Type: EventPointerMove})
		}()
	}
	wg.Wait()
}

func TestEvent_ValidAndActivity(t *testing.T) {
	cases := []struct {
		ev       Event
		valid    bool
		activity bool
	}{
		{Event{Type: EventKeyDown, Key: "a"}, true, true},
		{Event{Type: EventKeyDown}, false, true},
		{Event{Type: EventKeyUp, Key: "a"}, true, false},
		{Event{Type: EventPointerMove}, true, true},
		{Event{Type: EventPointerClick}, true, false},
		{Event{Type: EventTouch}, true, true},
		{Event{Type: EventScroll}, true, true},
		{Event{Type: "wheel"}, false, false},
	}
	for _, tc := range cases {
		if got := tc.ev.Valid(); got != tc.valid {
			t.Errorf("%+v Valid = %v, want %v", tc.ev, got, tc.valid)
		}
		if got := tc.ev.IsActivity(); got != tc.activity {
			t.Errorf("%+v IsActivity = %v, want %v", tc.ev, got, tc.activity)
		}
	}
}
