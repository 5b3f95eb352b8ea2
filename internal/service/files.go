package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"supportchat-backend/internal/model"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxAttachmentSize is the hard cap enforced at this boundary.
const MaxAttachmentSize = 10 << 20 // 10MB

// Only images, PDFs, office documents and archives may be attached.
var allowedMIMEs = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/zip",
	"application/x-rar-compressed",
	"application/x-7z-compressed",
}

// BlobStore persists attachment bytes. The chat core only ever sees the
// opaque ref it hands back.
type BlobStore interface {
	Put(ctx context.Context, ref string, data []byte) error
}

// DiskStore is the development BlobStore: one file per ref.
type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{dir: dir}, nil
}

func (s *DiskStore) Put(_ context.Context, ref string, data []byte) error {
	return os.WriteFile(filepath.Join(s.dir, ref), data, 0o644)
}

type FileService struct {
	blobs BlobStore
}

func NewFileService(blobs BlobStore) *FileService {
	return &FileService{blobs: blobs}
}

// Store validates and persists an attachment, returning the ref a chat
// message will carry. Oversized or disallowed payloads are rejected
// before anything is written.
func (s *FileService) Store(ctx context.Context, data []byte) (*model.AttachmentResponse, error) {
	if len(data) > MaxAttachmentSize {
		return nil, ErrFileTooLarge
	}

	mtype := mimetype.Detect(data)
	allowed := false
	for _, want := range allowedMIMEs {
		if mtype.Is(want) {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrFileType
	}

	ref := uuid.NewString() + mtype.Extension()
	if err := s.blobs.Put(ctx, ref, data); err != nil {
		return nil, err
	}

	messageType := model.MessageFile
	if strings.HasPrefix(mtype.String(), "image/") {
		messageType = model.MessageImage
	}

	return &model.AttachmentResponse{
		FileRef:     ref,
		MessageType: messageType,
		ContentType: mtype.String(),
		Size:        len(data),
	}, nil
}
