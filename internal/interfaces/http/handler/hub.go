package handler

import (
	"sync"

	"neurotext/internal/application/expansion"
)

// 单个订阅者的事件缓冲；写满时丢弃最旧语义不可取，直接丢新事件，
// SSE 客户端靠最终的 complete/error 事件兜底
const subscriberBuffer = 64

// EventHub 运行中任务的进程内事件总线。
// 任务事件由流水线 goroutine 发布，SSE 连接按任务 ID 订阅。
type EventHub struct {
	mu   sync.RWMutex
	subs map[string]map[chan expansion.Event]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{
		subs: make(map[string]map[chan expansion.Event]struct{}),
	}
}

// Publish 向任务的所有订阅者广播事件，订阅者缓冲写满时丢弃
func (h *EventHub) Publish(jobID string, ev expansion.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[jobID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe 订阅任务事件，返回通道与取消函数
func (h *EventHub) Subscribe(jobID string) (<-chan expansion.Event, func()) {
	ch := make(chan expansion.Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[jobID] == nil {
		h.subs[jobID] = make(map[chan expansion.Event]struct{})
	}
	h.subs[jobID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[jobID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, jobID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// sinkFor 把总线适配成流水线的事件接收器
func (h *EventHub) sinkFor(jobID string) expansion.EventSink {
	return expansion.EventSinkFunc(func(ev expansion.Event) {
		h.Publish(jobID, ev)
	})
}
