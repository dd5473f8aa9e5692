package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	PromptSkeletonExtractV1 PromptID = "skeleton_extract_v1"
	PromptChunkSkeletonV1   PromptID = "chunk_skeleton_v1"
	PromptSkeletonMergeV1   PromptID = "skeleton_merge_v1"
	PromptOutlinePlanV1     PromptID = "outline_plan_v1"
	PromptSectionOpenV1     PromptID = "section_open_v1"
	PromptSectionContinueV1 PromptID = "section_continue_v1"
	PromptDialogueOpenV1    PromptID = "dialogue_open_v1"
	PromptDialogueContV1    PromptID = "dialogue_continue_v1"
	PromptDeltaAuditV1      PromptID = "delta_audit_v1"
	PromptStitchRepairV1    PromptID = "stitch_repair_v1"
)

type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]einoprompt.ChatTemplate
}

func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]einoprompt.ChatTemplate),
	}
}

func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	systemPath, userPath, err := resolvePromptFiles(id)
	if err != nil {
		return nil, err
	}
	system, err := readEmbeddedText(systemPath)
	if err != nil {
		return nil, err
	}
	user, err := readEmbeddedText(userPath)
	if err != nil {
		return nil, err
	}

	tpl := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	r.cache[id] = tpl
	return tpl, nil
}

func resolvePromptFiles(id PromptID) (systemFile string, userFile string, err error) {
	switch id {
	case PromptSkeletonExtractV1, PromptChunkSkeletonV1, PromptSkeletonMergeV1,
		PromptOutlinePlanV1, PromptSectionOpenV1, PromptSectionContinueV1,
		PromptDialogueOpenV1, PromptDialogueContV1, PromptDeltaAuditV1,
		PromptStitchRepairV1:
		base := "templates/" + string(id)
		return base + ".system.txt", base + ".user.txt", nil
	default:
		return "", "", fmt.Errorf("unknown prompt id: %s", id)
	}
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
