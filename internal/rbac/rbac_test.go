// Copyright (c) 2026 Finsight. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package rbac_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/finsight/internal/rbac"
)

func viewerSnapshot() *rbac.Snapshot {
	return &rbac.Snapshot{
		UserID: "user-1",
		Roles:  []string{rbac.RoleViewer},
		Permissions: []rbac.Permission{
			{Resource: rbac.ResourceDocuments, Action: rbac.ActionRead},
			{Resource: rbac.ResourceAnalyses, Action: rbac.ActionRead},
			{Resource: rbac.ResourceUsers, Action: rbac.ActionRead},
		},
	}
}

func adminSnapshot() *rbac.Snapshot {
	return &rbac.Snapshot{
		UserID: "admin-1",
		Roles:  []string{rbac.RoleAdmin},
		Permissions: []rbac.Permission{
			{Resource: rbac.ResourceUsers, Action: rbac.ActionManage},
			{Resource: rbac.ResourceDocuments, Action: rbac.ActionManage},
			{Resource: rbac.ResourceAuditLogs, Action: rbac.ActionRead},
		},
	}
}

/*
TestEngine_Authorize tests the deny-by-default decision matrix.
*/
func TestEngine_Authorize(t *testing.T) {
	engine := rbac.NewEngine()

	tests := []struct {
		name     string
		snapshot *rbac.Snapshot
		resource string
		action   rbac.Action
		allowed  bool
	}{
		{"viewer_reads_documents", viewerSnapshot(), rbac.ResourceDocuments, rbac.ActionRead, true},
		{"viewer_cannot_write_documents", viewerSnapshot(), rbac.ResourceDocuments, rbac.ActionWrite, false},
		{"viewer_cannot_delete", viewerSnapshot(), rbac.ResourceAnalyses, rbac.ActionDelete, false},
		{"viewer_cannot_read_audit", viewerSnapshot(), rbac.ResourceAuditLogs, rbac.ActionRead, false},
		{"unknown_resource_denied", viewerSnapshot(), "exports", rbac.ActionRead, false},
		{"admin_manage_grants_read", adminSnapshot(), rbac.ResourceUsers, rbac.ActionRead, true},
		{"admin_manage_grants_write", adminSnapshot(), rbac.ResourceUsers, rbac.ActionWrite, true},
		{"admin_manage_grants_delete", adminSnapshot(), rbac.ResourceDocuments, rbac.ActionDelete, true},
		{"admin_explicit_audit_read", adminSnapshot(), rbac.ResourceAuditLogs, rbac.ActionRead, true},
		{"admin_cannot_write_audit", adminSnapshot(), rbac.ResourceAuditLogs, rbac.ActionWrite, false},
		{"manage_wildcard_is_per_resource", adminSnapshot(), rbac.ResourceRoles, rbac.ActionRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := engine.Authorize(tt.snapshot, tt.resource, tt.action)

			assert.Equal(t, tt.allowed, decision.Allowed)
			if !tt.allowed {
				assert.NotEmpty(t, decision.Reason)
			} else {
				assert.Empty(t, decision.Reason)
			}
		})
	}
}

/*
TestEngine_Authorize_NilSnapshot tests that an unresolved identity is a plain
denial, never a panic.
*/
func TestEngine_Authorize_NilSnapshot(t *testing.T) {
	engine := rbac.NewEngine()

	decision := engine.Authorize(nil, rbac.ResourceDocuments, rbac.ActionRead)

	require.False(t, decision.Allowed)
	assert.NotEmpty(t, decision.Reason)
}

/*
TestEngine_AuthorizeOwned tests instance-level decisions: manage bypasses
ownership, base permissions require it.
*/
func TestEngine_AuthorizeOwned(t *testing.T) {
	engine := rbac.NewEngine()

	owns := func(ownerID string) rbac.OwnerPredicate {
		return func(subjectID string) bool { return subjectID == ownerID }
	}

	tests := []struct {
		name     string
		snapshot *rbac.Snapshot
		owner    string
		allowed  bool
	}{
		{"owner_with_base_permission", viewerSnapshot(), "user-1", true},
		{"non_owner_with_base_permission", viewerSnapshot(), "user-2", false},
		{"manage_bypasses_ownership", adminSnapshot(), "user-2", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := engine.AuthorizeOwned(tt.snapshot, rbac.ResourceUsers, rbac.ActionRead, owns(tt.owner))
			assert.Equal(t, tt.allowed, decision.Allowed)
		})
	}
}

/*
TestEngine_AuthorizeOwned_MissingBase tests that ownership never substitutes
for the base permission.
*/
func TestEngine_AuthorizeOwned_MissingBase(t *testing.T) {
	engine := rbac.NewEngine()
	snapshot := &rbac.Snapshot{UserID: "user-1", Roles: []string{rbac.RoleViewer}}

	decision := engine.AuthorizeOwned(snapshot, rbac.ResourceDocuments, rbac.ActionWrite,
		func(subjectID string) bool { return true })

	require.False(t, decision.Allowed)
}

/*
TestSnapshot_HasRole tests role membership lookup.
*/
func TestSnapshot_HasRole(t *testing.T) {
	snapshot := viewerSnapshot()

	assert.True(t, snapshot.HasRole(rbac.RoleViewer))
	assert.False(t, snapshot.HasRole(rbac.RoleAdmin))
}
