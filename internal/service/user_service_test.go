package service

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/studio-desk/internal/domain"
	"github.com/spec-kit/studio-desk/internal/repository"
	repomock "github.com/spec-kit/studio-desk/internal/repository/mock"
	apperrors "github.com/spec-kit/studio-desk/pkg/util/errorutil"
)

type forgetRecorder struct {
	ids []string
}

func (f *forgetRecorder) Forget(_ context.Context, userID string) {
	f.ids = append(f.ids, userID)
}

func setupUserService(t *testing.T) (*UserService, *repomock.MockUserRepository, *repomock.MockRoleRepository, *forgetRecorder) {
	ctrl := gomock.NewController(t)
	t.Cleanup(func() { ctrl.Finish() })

	users := repomock.NewMockUserRepository(ctrl)
	roles := repomock.NewMockRoleRepository(ctrl)
	forgotten := &forgetRecorder{}
	svc := NewUserService(testAuthConfig, UserDependencies{UserRepo: users, RoleRepo: roles, Principals: forgotten})
	return svc, users, roles, forgotten
}

func TestUserService_AdminOnly(t *testing.T) {
	svc, _, _, _ := setupUserService(t)

	_, err := svc.List(context.Background(), editorActor, UserListFilters{})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	_, err = svc.Create(context.Background(), clientActor, UserCreateInput{})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	assert.True(t, apperrors.IsCode(svc.Delete(context.Background(), editorActor, clientID), apperrors.CodeForbidden))
}

func TestUserService_ListPassesFilters(t *testing.T) {
	svc, users, _, _ := setupUserService(t)
	role := domain.RoleEditor
	users.EXPECT().List(gomock.Any(), repository.UserFilter{RoleName: &role, Limit: 10}).Return([]domain.User{{ID: editorID}}, nil)

	got, err := svc.List(context.Background(), adminActor, UserListFilters{Role: &role, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestUserService_CreateEditor(t *testing.T) {
	svc, users, roles, _ := setupUserService(t)

	roles.EXPECT().GetByName(gomock.Any(), domain.RoleEditor).Return(&domain.Role{ID: "role-editor", Name: domain.RoleEditor}, nil)
	users.EXPECT().GetByLogin(gomock.Any(), "ed@studio.test").Return(nil, pgx.ErrNoRows)
	users.EXPECT().GetByLogin(gomock.Any(), "ed").Return(nil, pgx.ErrNoRows)
	users.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, u *domain.User) error {
			u.ID = editorID
			return nil
		})

	user, err := svc.Create(context.Background(), adminActor, UserCreateInput{
		Email: "ed@studio.test", Username: "ed", Password: "correct-horse", Role: domain.RoleEditor,
	})
	require.NoError(t, err)
	assert.Equal(t, "role-editor", user.RoleID)
	assert.True(t, user.IsActive)
}

func TestUserService_CreateUnknownRole(t *testing.T) {
	svc, _, roles, _ := setupUserService(t)
	roles.EXPECT().GetByName(gomock.Any(), domain.RoleName("auditor")).Return(nil, pgx.ErrNoRows)

	_, err := svc.Create(context.Background(), adminActor, UserCreateInput{
		Email: "x@studio.test", Username: "x", Password: "correct-horse", Role: "auditor",
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestUserService_UpdateInvalidatesPrincipal(t *testing.T) {
	svc, users, roles, forgotten := setupUserService(t)
	stored := &domain.User{ID: editorID, RoleID: "role-editor", RoleName: domain.RoleEditor, Email: "ed@studio.test", Username: "ed", IsActive: true}

	users.EXPECT().GetByID(gomock.Any(), editorID).Return(stored, nil)
	roles.EXPECT().GetByName(gomock.Any(), domain.RoleAdmin).Return(&domain.Role{ID: "role-admin", Name: domain.RoleAdmin}, nil)
	users.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)

	admin := domain.RoleAdmin
	inactive := false
	got, err := svc.Update(context.Background(), adminActor, editorID, UserUpdateInput{Role: &admin, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, got.RoleName)
	assert.False(t, got.IsActive)
	assert.Equal(t, []string{editorID}, forgotten.ids)
}

func TestUserService_UpdateTakenUsername(t *testing.T) {
	svc, users, _, _ := setupUserService(t)
	users.EXPECT().GetByID(gomock.Any(), editorID).Return(&domain.User{ID: editorID, Username: "ed"}, nil)
	users.EXPECT().GetByLogin(gomock.Any(), "ana").Return(&domain.User{ID: clientID}, nil)

	_, err := svc.Update(context.Background(), adminActor, editorID, UserUpdateInput{Username: ptr("ana")})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestUserService_AdminCannotLockThemselvesOut(t *testing.T) {
	svc, users, _, _ := setupUserService(t)
	self := &domain.User{ID: adminID, RoleName: domain.RoleAdmin, IsActive: true}
	users.EXPECT().GetByID(gomock.Any(), adminID).DoAndReturn(
		func(context.Context, string) (*domain.User, error) { u := *self; return &u, nil }).Times(2)

	editor := domain.RoleEditor
	_, err := svc.Update(context.Background(), adminActor, adminID, UserUpdateInput{Role: &editor})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))

	inactive := false
	_, err = svc.Update(context.Background(), adminActor, adminID, UserUpdateInput{IsActive: &inactive})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidState))

	assert.True(t, apperrors.IsCode(svc.Delete(context.Background(), adminActor, adminID), apperrors.CodeInvalidState))
}

func TestUserService_Delete(t *testing.T) {
	svc, users, _, forgotten := setupUserService(t)
	users.EXPECT().Delete(gomock.Any(), clientID).Return(nil)
	users.EXPECT().Delete(gomock.Any(), client2ID).Return(pgx.ErrNoRows)

	require.NoError(t, svc.Delete(context.Background(), adminActor, clientID))
	assert.Equal(t, []string{clientID}, forgotten.ids)

	err := svc.Delete(context.Background(), adminActor, client2ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}
