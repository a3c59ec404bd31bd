package payload

import (
	"encoding/json"
	"fmt"
)

// JobType is the closed set of asynchronous generation tasks.
type JobType string

const (
	TypeOrganizationEnrich JobType = "organization_enrich"
	TypeUseCaseList        JobType = "usecase_list"
	TypeUseCaseDetail      JobType = "usecase_detail"
	TypeExecutiveSummary   JobType = "executive_summary"
	TypeChatMessage        JobType = "chat_message"
	TypeDocumentSummary    JobType = "document_summary"
)

// All lists every job type, in claim-priority order.
func All() []JobType {
	return []JobType{
		TypeChatMessage,
		TypeUseCaseList,
		TypeOrganizationEnrich,
		TypeUseCaseDetail,
		TypeExecutiveSummary,
		TypeDocumentSummary,
	}
}

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	switch t {
	case TypeOrganizationEnrich, TypeUseCaseList, TypeUseCaseDetail,
		TypeExecutiveSummary, TypeChatMessage, TypeDocumentSummary:
		return true
	}
	return false
}

// Claim priorities (lower = claimed first). Chat replies are the most
// latency-sensitive, then use-case list generation; everything else is bulk work.
const (
	PriorityChat   = 0
	PriorityList   = 1
	PriorityNormal = 2
)

// Priority returns the fixed claim priority for a job type.
func Priority(t JobType) int {
	switch t {
	case TypeChatMessage:
		return PriorityChat
	case TypeUseCaseList:
		return PriorityList
	default:
		return PriorityNormal
	}
}

// OrganizationEnrich asks for an organization profile to be enriched.
type OrganizationEnrich struct {
	OrganizationID string `json:"organizationId"`
	Model          string `json:"model,omitempty"`
}

// UseCaseList asks for a list of use-case stubs for a folder.
type UseCaseList struct {
	FolderID string `json:"folderId"`
	Input    string `json:"input,omitempty"`
	Count    int    `json:"count,omitempty"`
	Model    string `json:"model,omitempty"`
}

// UseCaseDetail asks for the full detail of a single use case.
type UseCaseDetail struct {
	UseCaseID   string `json:"useCaseId"`
	UseCaseName string `json:"useCaseName"`
	FolderID    string `json:"folderId"`
	Model       string `json:"model,omitempty"`
}

// ExecutiveSummary asks for a folder-level executive summary.
type ExecutiveSummary struct {
	FolderID string `json:"folderId"`
	Model    string `json:"model,omitempty"`
}

// ChatMessage asks for an assistant reply to a chat message.
type ChatMessage struct {
	ChatID    string `json:"chatId"`
	MessageID string `json:"messageId"`
	Model     string `json:"model,omitempty"`
}

// DocumentSummary asks for a summary of an uploaded document.
type DocumentSummary struct {
	DocumentID string `json:"documentId"`
	Model      string `json:"model,omitempty"`
}

// Decode unmarshals raw into the payload struct matching t.
// The switch is exhaustive over the closed job type set.
func Decode(t JobType, raw json.RawMessage) (any, error) {
	var (
		out any
		err error
	)
	switch t {
	case TypeOrganizationEnrich:
		var p OrganizationEnrich
		err = json.Unmarshal(raw, &p)
		out = p
	case TypeUseCaseList:
		var p UseCaseList
		err = json.Unmarshal(raw, &p)
		out = p
	case TypeUseCaseDetail:
		var p UseCaseDetail
		err = json.Unmarshal(raw, &p)
		out = p
	case TypeExecutiveSummary:
		var p ExecutiveSummary
		err = json.Unmarshal(raw, &p)
		out = p
	case TypeChatMessage:
		var p ChatMessage
		err = json.Unmarshal(raw, &p)
		out = p
	case TypeDocumentSummary:
		var p DocumentSummary
		err = json.Unmarshal(raw, &p)
		out = p
	default:
		return nil, fmt.Errorf("unknown job type %q", t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	return out, nil
}
