// Package expansion 编排扩写流水线：解析、骨架、大纲、分节生成、审计与缝合
package expansion

import "neurotext/internal/domain/entity"

// EventKind 流水线事件类型
type EventKind string

const (
	EventProgress        EventKind = "progress"
	EventOutline         EventKind = "outline"
	EventSectionComplete EventKind = "section_complete"
	EventComplete        EventKind = "complete"
	EventError           EventKind = "error"
)

// Event 流水线过程事件，推给任务状态存储与 SSE 订阅方。
//
// 进度值沿用两段式刻度：骨架阶段在 0-45 内推进，
// 分节生成阶段重新从 0 数到 100。
type Event struct {
	Kind    EventKind `json:"kind"`
	Message string    `json:"message,omitempty"`
	Percent int       `json:"percent"`

	// EventOutline 专用
	Outline       string `json:"outline,omitempty"`
	TotalSections int    `json:"total_sections,omitempty"`

	// EventSectionComplete 专用
	Index               int    `json:"index,omitempty"`
	SectionName         string `json:"section_name,omitempty"`
	SectionWordCount    int    `json:"section_word_count,omitempty"`
	CumulativeWordCount int    `json:"cumulative_word_count,omitempty"`

	// EventComplete 专用
	Document *Document `json:"document,omitempty"`

	// EventError 专用
	Error string `json:"error,omitempty"`
}

// EventSink 接收流水线事件。实现必须快速返回，不得阻塞生成循环。
type EventSink interface {
	OnEvent(ev Event)
}

// EventSinkFunc 函数适配器
type EventSinkFunc func(ev Event)

func (f EventSinkFunc) OnEvent(ev Event) {
	if f != nil {
		f(ev)
	}
}

// MultiSink 把事件扇出给多个下游
type MultiSink []EventSink

func (m MultiSink) OnEvent(ev Event) {
	for _, s := range m {
		if s != nil {
			s.OnEvent(ev)
		}
	}
}

// nopSink 丢弃所有事件
type nopSink struct{}

func (nopSink) OnEvent(Event) {}

var _ = []EventSink{EventSinkFunc(nil), MultiSink(nil), nopSink{}}

// sectionEvent 构造分节完成事件
func sectionEvent(index, total int, res *entity.SectionResult, cumulative int) Event {
	percent := 0
	if total > 0 {
		percent = (index + 1) * 100 / total
	}
	return Event{
		Kind:                EventSectionComplete,
		Percent:             percent,
		Index:               index,
		SectionName:         res.Name,
		SectionWordCount:    res.WordCount,
		CumulativeWordCount: cumulative,
	}
}
