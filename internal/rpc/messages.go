// Package rpc is the wire contract between the lifedash client and the record
// service: request and response messages, their protobuf encoding and the
// EntryService gRPC descriptor.
package rpc

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/lifedash/internal/models"
	"google.golang.org/protobuf/types/known/structpb"
)

type PingRequest struct{}

type PingResponse struct {
	Status string
}

// ListRequest selects the caller's entries. An empty Domain lists every
// domain; an empty Scope means models.DefaultScope.
type ListRequest struct {
	Domain string
	Scope  string
}

type ListResponse struct {
	Entries []models.Entry
}

// CreateRequest carries the client's draft. The server assigns ID, OwnerID
// and timestamps and stamps Scope on the row.
type CreateRequest struct {
	Entry models.Entry
	Scope string
}

type UpdateRequest struct {
	ID    string
	Patch models.Patch
}

type EntryResponse struct {
	Entry models.Entry
}

type DeleteRequest struct {
	ID string
}

// DeleteResponse reports how many rows the delete removed.
type DeleteResponse struct {
	Deleted int64
}

type PresignUploadRequest struct {
	EntryID     string
	ContentType string
}

type PresignDownloadRequest struct {
	EntryID string
	Key     string
}

type PresignResponse struct {
	Key       string
	URL       string
	ExpiresAt time.Time
}

func (m *PingRequest) toProto() (*structpb.Struct, error) { return fields{}.message(), nil }

func (m *PingRequest) fromProto(*structpb.Struct) error { return nil }

func (m *PingResponse) toProto() (*structpb.Struct, error) {
	return fields{"status": stringValue(m.Status)}.message(), nil
}

func (m *PingResponse) fromProto(s *structpb.Struct) error {
	r := newReader(s)
	m.Status = r.str("status")
	return r.err
}

func (m *ListRequest) toProto() (*structpb.Struct, error) {
	return fields{"domain": stringValue(m.Domain), "scope": stringValue(m.Scope)}.message(), nil
}

func (m *ListRequest) fromProto(s *structpb.Struct) error {
	r := newReader(s)
	m.Domain = r.str("domain")
	m.Scope = r.str("scope")
	return r.err
}

func (m *ListResponse) toProto() (*structpb.Struct, error) {
	list := make([]*structpb.Value, 0, len(m.Entries))
	for _, e := range m.Entries {
		v, err := entryValue(e)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return fields{"entries": structpb.NewListValue(&structpb.ListValue{Values: list})}.message(), nil
}

func (m *ListResponse) fromProto(s *structpb.Struct) error {
	r := newReader(s)
	m.Entries = r.entries("entries")
	return r.err
}

func (m *CreateRequest) toProto() (*structpb.Struct, error) {
	e, err := entryValue(m.Entry)
	if err != nil {
		return nil, err
	}
	return fields{"entry": e, "scope": stringValue(m.Scope)}.message(), nil
}

func (m *CreateRequest) fromProto(s *structpb.Struct) error {
	r := newReader(s)
	m.Entry = r.entry("entry")
	m.Scope = r.str("scope")
	return r.err
}

func (m *UpdateRequest) toProto() (*structpb.Struct, error) {
	patch := fields{}
	if m.Patch.Title != nil {
		patch["title"] = stringValue(*m.Patch.Title)
	}
	if m.Patch.Description != nil {
		patch["description"] = stringValue(*m.Patch.Description)
	}
	if m.Patch.Metadata != nil {
		meta, err := objectValue(m.Patch.Metadata)
		if err != nil {
			return nil, fmt.Errorf("patch metadata: %w", err)
		}
		patch["metadata"] = meta
	}
	return fields{
		"id":    stringValue(m.ID),
		"patch": structpb.NewStructValue(patch.message()),
	}.message(), nil
}

func (m *UpdateRequest) fromProto(s *structpb.Struct) error {
	r := newReader(s)
	m.ID = r.str("id")
	if v := r.lookup("patch"); v != nil {
		ps := v.GetStructValue()
		if ps == nil {
			r.fail("patch", "object")
			return r.err
		}
		pr := newReader(ps)
		m.Patch = models.Patch{
			Title:       pr.optStr("title"),
			Description: pr.optStr("description"),
			Metadata:    pr.object("metadata"),
		}
		if pr.err != nil && r.err == nil {
			r.err = fmt.Errorf("patch: %w", pr.err)
		}
	}
	return r.err
}

func (m *EntryResponse) toProto() (*structpb.Struct, error) {
	e, err := entryValue(m.Entry)
	if err != nil {
		return nil, err
	}
	return fields{"entry": e}.message(), nil
}

func (m *EntryResponse) fromProto(s *structpb.Struct) error {
	r := newReader(s)
	m.Entry = r.entry("entry")
	return r.err
}

func (m *DeleteRequest) toProto() (*structpb.Struct, error) {
	return fields{"id": stringValue(m.ID)}.message(), nil
}

func (m *DeleteRequest) fromProto(s *structpb.Struct) error {
	r := newReader(s)
	m.ID = r.str("id")
	return r.err
}

func (m *DeleteResponse) toProto() (*structpb.Struct, error) {
	return fields{"deleted": structpb.NewNumberValue(float64(m.Deleted))}.message(), nil
}

func (m *DeleteResponse) fromProto(s *structpb.Struct) error {
	r := newReader(s)
	m.Deleted = r.int("deleted")
	return r.err
}

func (m *PresignUploadRequest) toProto() (*structpb.Struct, error) {
	return fields{"entry_id": stringValue(m.EntryID), "content_type": stringValue(m.ContentType)}.message(), nil
}

func (m *PresignUploadRequest) fromProto(s *structpb.Struct) error {
	r := newReader(s)
	m.EntryID = r.str("entry_id")
	m.ContentType = r.str("content_type")
	return r.err
}

func (m *PresignDownloadRequest) toProto() (*structpb.Struct, error) {
	return fields{"entry_id": stringValue(m.EntryID), "key": stringValue(m.Key)}.message(), nil
}

func (m *PresignDownloadRequest) fromProto(s *structpb.Struct) error {
	r := newReader(s)
	m.EntryID = r.str("entry_id")
	m.Key = r.str("key")
	return r.err
}

func (m *PresignResponse) toProto() (*structpb.Struct, error) {
	return fields{
		"key":        stringValue(m.Key),
		"url":        stringValue(m.URL),
		"expires_at": timeValue(m.ExpiresAt),
	}.message(), nil
}

func (m *PresignResponse) fromProto(s *structpb.Struct) error {
	r := newReader(s)
	m.Key = r.str("key")
	m.URL = r.str("url")
	m.ExpiresAt = r.time("expires_at")
	return r.err
}
