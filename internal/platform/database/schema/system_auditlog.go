// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema centralizes table and column identifiers for stores that
// build queries dynamically, so a rename is a one-file change.
package schema

// SystemAuditLogTable represents the 'system.auditlog' table
type SystemAuditLogTable struct {
	Table      string
	ID         string
	ActorID    string
	Action     string
	Resource   string
	ResourceID string
	Outcome    string
	Details    string
	IPAddress  string
	UserAgent  string
	CreatedAt  string
}

// SystemAuditLog is the schema definition for system.auditlog
var SystemAuditLog = SystemAuditLogTable{
	Table:      "system.auditlog",
	ID:         "id",
	ActorID:    "actorid",
	Action:     "action",
	Resource:   "resource",
	ResourceID: "resourceid",
	Outcome:    "outcome",
	Details:    "details",
	IPAddress:  "ipaddress",
	UserAgent:  "useragent",
	CreatedAt:  "createdat",
}

// Columns returns all standard column names
func (t SystemAuditLogTable) Columns() []string {
	return []string{
		t.ID, t.ActorID, t.Action, t.Resource, t.ResourceID,
		t.Outcome, t.Details, t.IPAddress, t.UserAgent, t.CreatedAt,
	}
}
