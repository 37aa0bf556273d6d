package service

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/getscaley/scaley/internal/model"
)

func strPtr(s string) *string { return &s }

func TestAdminCreateGetUpdateDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin, err := env.admins.Create(ctx, CreateAdminInput{
		Email:    "bob@example.com",
		Password: "password1",
		Name:     "Bob",
		Roles:    []string{model.RoleAdmin, "does-not-exist"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(admin.Roles) != 1 || admin.Roles[0] != model.RoleAdmin {
		t.Errorf("roles = %v, want [admin]", admin.Roles)
	}

	byID, err := env.admins.Get(ctx, strconv.FormatInt(admin.ID, 10))
	if err != nil {
		t.Fatalf("Get by id: %v", err)
	}
	byUUID, err := env.admins.Get(ctx, admin.UUID)
	if err != nil {
		t.Fatalf("Get by uuid: %v", err)
	}
	if byID.ID != byUUID.ID {
		t.Errorf("id and uuid lookups disagree: %d vs %d", byID.ID, byUUID.ID)
	}

	updated, err := env.admins.Update(ctx, admin.UUID, UpdateAdminInput{Name: strPtr("Robert")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Robert" || updated.Email != "bob@example.com" {
		t.Errorf("partial update changed the wrong fields: %+v", updated)
	}
	if len(updated.Roles) != 1 {
		t.Errorf("roles changed by name-only update: %v", updated.Roles)
	}

	if _, err := env.admins.Update(ctx, admin.UUID, UpdateAdminInput{Password: strPtr("new-password")}); err != nil {
		t.Fatalf("Update password: %v", err)
	}
	if _, err := env.auth.Login(ctx, "bob@example.com", "new-password"); err != nil {
		t.Errorf("login with new password: %v", err)
	}
	_, err = env.auth.Login(ctx, "bob@example.com", "password1")
	assertKind(t, err, KindUnauthenticated)

	empty := []string{}
	cleared, err := env.admins.Update(ctx, admin.UUID, UpdateAdminInput{Roles: &empty})
	if err != nil {
		t.Fatalf("Update roles: %v", err)
	}
	if len(cleared.Roles) != 0 {
		t.Errorf("roles = %v, want none", cleared.Roles)
	}

	ref := strconv.FormatInt(admin.ID, 10)
	if err := env.admins.Delete(ctx, ref); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	assertKind(t, env.admins.Delete(ctx, ref), KindNotFound)
	_, err = env.admins.Get(ctx, admin.UUID)
	assertKind(t, err, KindNotFound)
}

func TestAdminUpdateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a, err := env.admins.Create(ctx, CreateAdminInput{Email: "a@example.com", Password: "password1", Name: "Ann"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.admins.Create(ctx, CreateAdminInput{Email: "b@example.com", Password: "password1", Name: "Ben"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		name string
		in   UpdateAdminInput
		want Kind
	}{
		{"empty update", UpdateAdminInput{}, KindValidation},
		{"bad email", UpdateAdminInput{Email: strPtr("nope")}, KindValidation},
		{"short name", UpdateAdminInput{Name: strPtr("A")}, KindValidation},
		{"short password", UpdateAdminInput{Password: strPtr("1234")}, KindValidation},
		{"taken email", UpdateAdminInput{Email: strPtr("B@example.com")}, KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.admins.Update(ctx, a.UUID, tt.in)
			assertKind(t, err, tt.want)
		})
	}

	_, err = env.admins.Update(ctx, "99999", UpdateAdminInput{Name: strPtr("Nobody")})
	assertKind(t, err, KindNotFound)
}

func TestAdminGetUnknownRefs(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for _, ref := range []string{"12345", "99999999999999999999999", "0f8fad5b-d9cb-469f-a165-70867728950e", "not-a-uuid"} {
		t.Run(ref, func(t *testing.T) {
			_, err := env.admins.Get(ctx, ref)
			assertKind(t, err, KindNotFound)
		})
	}
}

func TestAdminList(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for i := 1; i <= 12; i++ {
		roles := []string{model.RoleAdmin}
		if i == 12 {
			roles = []string{model.RoleSuperAdmin}
		}
		_, err := env.admins.Create(ctx, CreateAdminInput{
			Email:    fmt.Sprintf("member%02d@example.com", i),
			Password: "password1",
			Name:     fmt.Sprintf("Member %02d", i),
			Roles:    roles,
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	page, err := env.admins.List(ctx, ListAdminsParams{Page: 2, PageSize: 5})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 12 || page.Page != 2 || page.PageSize != 5 || len(page.Items) != 5 {
		t.Errorf("unexpected page %+v", page)
	}
	if page.Items[0].Email != "member06@example.com" {
		t.Errorf("first item of page 2 = %s, want member06", page.Items[0].Email)
	}

	last, err := env.admins.List(ctx, ListAdminsParams{Page: 3, PageSize: 5})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(last.Items) != 2 {
		t.Errorf("last page has %d items, want 2", len(last.Items))
	}

	sorted, err := env.admins.List(ctx, ListAdminsParams{Page: 1, PageSize: 1, Sort: "name", Order: "DESC"})
	if err != nil {
		t.Fatalf("List sorted: %v", err)
	}
	if sorted.Items[0].Name != "Member 12" {
		t.Errorf("first by name desc = %q, want Member 12", sorted.Items[0].Name)
	}

	filtered, err := env.admins.List(ctx, ListAdminsParams{Page: 1, PageSize: 20, Role: model.RoleSuperAdmin, Search: "MEMBER"})
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if filtered.Total != 1 {
		t.Errorf("filtered total = %d, want 1", filtered.Total)
	}

	invalid := []ListAdminsParams{
		{Page: 0, PageSize: 20},
		{Page: 1, PageSize: 0},
		{Page: 1, PageSize: MaxPageSize + 1},
		{Page: 1, PageSize: 20, Sort: "password_hash"},
		{Page: 1, PageSize: 20, Order: "sideways"},
	}
	for _, p := range invalid {
		_, err := env.admins.List(ctx, p)
		assertKind(t, err, KindValidation)
	}
}
