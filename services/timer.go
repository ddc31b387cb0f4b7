package services

import (
	"sync"
	"time"
)

// phaseTimer 阶段计时器。到期触发回调，期间周期性上报剩余时间。
// stop会等待计时协程退出，保证取消后不会再触发回调。
type phaseTimer struct {
	cancelOnce sync.Once
	cancel     chan struct{}
	done       chan struct{}
}

func newPhaseTimer(duration, tick time.Duration, onTick func(remaining time.Duration), onExpire func()) *phaseTimer {
	t := &phaseTimer{
		cancel: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go t.run(duration, tick, onTick, onExpire)
	return t
}

func (t *phaseTimer) run(duration, tick time.Duration, onTick func(remaining time.Duration), onExpire func()) {
	defer close(t.done)

	deadline := time.Now().Add(duration)
	expire := time.NewTimer(duration)
	defer expire.Stop()
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-t.cancel:
			return
		case <-ticker.C:
			if onTick != nil {
				onTick(time.Until(deadline))
			}
		case <-expire.C:
			onExpire()
			return
		}
	}
}

// stop 取消计时器并等待计时协程结束。
// 不能在持有会话锁时调用，否则会和正在等锁的到期回调互相等待。
func (t *phaseTimer) stop() {
	t.cancelOnce.Do(func() { close(t.cancel) })
	<-t.done
}
