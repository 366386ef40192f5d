package mcp

import (
	"context"
	"fmt"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"cronista/internal/check"
	"cronista/internal/store"
)

type GetEventInput struct {
	ID string `json:"id" jsonschema:"event id"`
}

type GetEventOutput struct {
	Event store.Event `json:"event"`
}

type GetCharacterInput struct {
	ID string `json:"id" jsonschema:"character id"`
}

type GetCharacterOutput struct {
	Character store.Character `json:"character"`
	Events    []string        `json:"events"`
}

type GetLawInput struct {
	ID string `json:"id" jsonschema:"law id"`
}

type GetLawOutput struct {
	Law store.Law `json:"law"`
}

type ListEventsInput struct {
	Chapter   string `json:"chapter,omitempty" jsonschema:"restrict to a chapter"`
	Type      string `json:"type,omitempty" jsonschema:"restrict to an event type"`
	Character string `json:"character,omitempty" jsonschema:"restrict to events referencing a character id"`
}

type EventSummaryOutput struct {
	ID      string `json:"id"`
	Date    string `json:"date,omitempty"`
	Chapter string `json:"chapter"`
	Type    string `json:"type"`
	Summary string `json:"summary"`
}

type ListEventsOutput struct {
	Events []EventSummaryOutput `json:"events"`
}

type RunChecksInput struct{}

type RunChecksOutput struct {
	Issues []check.Issue `json:"issues"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_event",
		Description: "Retrieve one event with its exchanges and references",
	}, s.handleGetEvent)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_character",
		Description: "Retrieve one character and its event history",
	}, s.handleGetCharacter)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_law",
		Description: "Retrieve one law with its origin and related events",
	}, s.handleGetLaw)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_events",
		Description: "List event summaries with optional filters",
	}, s.handleListEvents)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "run_checks",
		Description: "Run the consistency checks and return the issue list",
	}, s.handleRunChecks)
}

func (s *Server) handleGetEvent(ctx context.Context, req *sdk.CallToolRequest, input GetEventInput) (*sdk.CallToolResult, GetEventOutput, error) {
	if input.ID == "" {
		return nil, GetEventOutput{}, fmt.Errorf("id is required")
	}
	ev, ok := s.cols.EventByID()[input.ID]
	if !ok {
		return nil, GetEventOutput{}, fmt.Errorf("event %s not found", input.ID)
	}
	return nil, GetEventOutput{Event: *ev}, nil
}

func (s *Server) handleGetCharacter(ctx context.Context, req *sdk.CallToolRequest, input GetCharacterInput) (*sdk.CallToolResult, GetCharacterOutput, error) {
	if input.ID == "" {
		return nil, GetCharacterOutput{}, fmt.Errorf("id is required")
	}
	char, ok := s.cols.CharacterByID()[input.ID]
	if !ok {
		return nil, GetCharacterOutput{}, fmt.Errorf("character %s not found", input.ID)
	}
	out := GetCharacterOutput{Character: *char}
	for _, ev := range s.cols.ResolveEventRefs(char) {
		out.Events = append(out.Events, ev.ID)
	}
	return nil, out, nil
}

func (s *Server) handleGetLaw(ctx context.Context, req *sdk.CallToolRequest, input GetLawInput) (*sdk.CallToolResult, GetLawOutput, error) {
	if input.ID == "" {
		return nil, GetLawOutput{}, fmt.Errorf("id is required")
	}
	law, ok := s.cols.LawByID()[input.ID]
	if !ok {
		return nil, GetLawOutput{}, fmt.Errorf("law %s not found", input.ID)
	}
	return nil, GetLawOutput{Law: *law}, nil
}

func (s *Server) handleListEvents(ctx context.Context, req *sdk.CallToolRequest, input ListEventsInput) (*sdk.CallToolResult, ListEventsOutput, error) {
	out := ListEventsOutput{Events: make([]EventSummaryOutput, 0)}
	for _, ev := range s.cols.Events.Records {
		if input.Chapter != "" && ev.Chapter != input.Chapter {
			continue
		}
		if input.Type != "" && ev.Type != input.Type {
			continue
		}
		if input.Character != "" && !containsID(ev.Characters, input.Character) {
			continue
		}
		out.Events = append(out.Events, EventSummaryOutput{
			ID:      ev.ID,
			Date:    ev.Date,
			Chapter: ev.Chapter,
			Type:    ev.Type,
			Summary: ev.Summary,
		})
	}
	return nil, out, nil
}

func (s *Server) handleRunChecks(ctx context.Context, req *sdk.CallToolRequest, input RunChecksInput) (*sdk.CallToolResult, RunChecksOutput, error) {
	report := s.checker.Run(s.cols)
	return nil, RunChecksOutput{Issues: report.Issues}, nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
