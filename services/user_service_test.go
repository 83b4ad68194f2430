package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/crowbar-gg/crowbar-backend/models"
	"github.com/crowbar-gg/crowbar-backend/repositories"
	"github.com/crowbar-gg/crowbar-backend/storage"
)

type fakeProfileUserRepo struct {
	repositories.UserRepository

	users   map[int]*models.User
	lookups int
	saved   []*models.User
}

func (f *fakeProfileUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	f.lookups++
	user, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeProfileUserRepo) UpdateProfile(ctx context.Context, user *models.User) error {
	f.saved = append(f.saved, user)
	return nil
}

type fakeUploader struct {
	keys []string
}

func (f *fakeUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*storage.UploadResult, error) {
	f.keys = append(f.keys, key)
	return &storage.UploadResult{Key: key, Location: "https://cdn.example.com/" + key}, nil
}

func (f *fakeUploader) Delete(ctx context.Context, key string) error { return nil }

func (f *fakeUploader) GetPublicURL(key string) string { return "https://cdn.example.com/" + key }

func TestUploadAvatarWithoutStorage(t *testing.T) {
	repo := &fakeProfileUserRepo{users: map[int]*models.User{
		1: {ID: 1, Username: "alice", Status: models.UserStatusActive},
	}}
	svc := NewUserService(repo, nil)

	_, err := svc.UploadAvatar(context.Background(), 1, "image/png", strings.NewReader("img"))
	if !errors.Is(err, ErrAvatarStorageUnavailable) {
		t.Fatalf("UploadAvatar error = %v, want ErrAvatarStorageUnavailable", err)
	}
	if repo.lookups != 0 || len(repo.saved) != 0 {
		t.Errorf("unconfigured storage touched the repository (lookups=%d saved=%d)",
			repo.lookups, len(repo.saved))
	}
}

func TestUploadAvatar(t *testing.T) {
	repo := &fakeProfileUserRepo{users: map[int]*models.User{
		1: {ID: 1, Username: "alice", PasswordHash: "hash", Status: models.UserStatusActive},
	}}
	uploader := &fakeUploader{}
	svc := NewUserService(repo, uploader)

	user, err := svc.UploadAvatar(context.Background(), 1, "image/png", strings.NewReader("img"))
	if err != nil {
		t.Fatalf("UploadAvatar error = %v", err)
	}

	if len(uploader.keys) != 1 {
		t.Fatalf("uploaded %d objects, want 1", len(uploader.keys))
	}
	if !strings.HasPrefix(uploader.keys[0], "avatars/1-") {
		t.Errorf("object key = %q, want avatars/1-<timestamp>", uploader.keys[0])
	}

	if user.Avatar == nil || *user.Avatar != "https://cdn.example.com/"+uploader.keys[0] {
		t.Errorf("avatar URL not recorded on the profile: %v", user.Avatar)
	}
	if user.PasswordHash != "" {
		t.Error("password hash leaked on the returned user")
	}
	if len(repo.saved) != 1 {
		t.Fatalf("saved %d profile updates, want 1", len(repo.saved))
	}

	// A second upload must produce a fresh key so the public URL changes.
	if _, err := svc.UploadAvatar(context.Background(), 1, "image/png", strings.NewReader("img2")); err != nil {
		t.Fatalf("second UploadAvatar error = %v", err)
	}
	if uploader.keys[0] == uploader.keys[1] {
		t.Errorf("replaced avatar reused object key %q", uploader.keys[0])
	}
}

func TestUploadAvatarUnknownUser(t *testing.T) {
	repo := &fakeProfileUserRepo{users: map[int]*models.User{}}
	svc := NewUserService(repo, &fakeUploader{})

	_, err := svc.UploadAvatar(context.Background(), 9, "image/png", strings.NewReader("img"))
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("UploadAvatar error = %v, want ErrUserNotFound", err)
	}
}
