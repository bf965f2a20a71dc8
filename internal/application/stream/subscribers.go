package stream

import (
	"sync"

	"tickfeed/internal/application/port"
)

// Subscription 订阅句柄，Unsubscribe 按句柄身份移除
type Subscription struct {
	handler port.UpdateHandler
	owner   *subscriberSet
}

// Cancel removes the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil || s.owner == nil {
		return
	}
	s.owner.remove(s)
}

type subscriberSet struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
	// order 保证回调顺序与注册顺序一致
	order []*Subscription
}

func newSubscriberSet() *subscriberSet {
	return &subscriberSet{subs: make(map[*Subscription]struct{})}
}

func (s *subscriberSet) add(h port.UpdateHandler) *Subscription {
	sub := &Subscription{handler: h, owner: s}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.order = append(s.order, sub)
	s.mu.Unlock()
	return sub
}

func (s *subscriberSet) remove(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub]; !ok {
		return
	}
	delete(s.subs, sub)
	for i, o := range s.order {
		if o == sub {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

// snapshot 当前订阅者的拷贝，fan-out 期间的增删不影响本次分发
func (s *subscriberSet) snapshot() []*Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Subscription, len(s.order))
	copy(out, s.order)
	return out
}

func (s *subscriberSet) contains(sub *Subscription) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subs[sub]
	return ok
}

func (s *subscriberSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

type statusHandlers struct {
	mu       sync.Mutex
	handlers []port.StatusHandler
}

func (s *statusHandlers) add(h port.StatusHandler) {
	if h == nil {
		return
	}
	s.mu.Lock()
	s.handlers = append(s.handlers, h)
	s.mu.Unlock()
}

func (s *statusHandlers) snapshot() []port.StatusHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]port.StatusHandler, len(s.handlers))
	copy(out, s.handlers)
	return out
}
