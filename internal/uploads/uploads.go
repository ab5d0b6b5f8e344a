package uploads

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/sb-works/collab-backend/config"
	"github.com/sb-works/collab-backend/internal/projects/domain"
)

// Folder is the key prefix chat attachments are stored under.
const Folder = "sb-works-chat"

var kinds = map[string]domain.MessageType{
	".jpeg": domain.MessageImage,
	".jpg":  domain.MessageImage,
	".png":  domain.MessageImage,
	".pdf":  domain.MessageFile,
	".doc":  domain.MessageFile,
	".docx": domain.MessageFile,
	".zip":  domain.MessageFile,
}

// KindOf maps a file name onto the message type used to send it.
func KindOf(fileName string) (domain.MessageType, bool) {
	t, ok := kinds[strings.ToLower(path.Ext(fileName))]
	return t, ok
}

// PresignedRequest is a signed request the client performs itself.
type PresignedRequest struct {
	URL     string
	Method  string
	Headers http.Header
}

type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (*PresignedRequest, error)
}

// S3Presigner signs PutObject requests against a single bucket.
type S3Presigner struct {
	client *s3.PresignClient
	bucket string
}

func NewS3Presigner(ctx context.Context, cfg config.UploadsConfig) (*S3Presigner, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &S3Presigner{
		client: s3.NewPresignClient(s3.NewFromConfig(awsCfg)),
		bucket: cfg.Bucket,
	}, nil
}

func (p *S3Presigner) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (*PresignedRequest, error) {
	req, err := p.client.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return nil, fmt.Errorf("presign put %s: %w", key, err)
	}
	return &PresignedRequest{URL: req.URL, Method: req.Method, Headers: req.SignedHeader}, nil
}

// Access decides whether the caller may post into the project's room.
type Access interface {
	CanJoin(ctx context.Context, caller domain.Caller, projectID string) error
}

// Ticket tells the client where to upload and what to send afterwards as
// the file or image message.
type Ticket struct {
	UploadURL   string             `json:"uploadUrl"`
	Method      string             `json:"method"`
	Headers     map[string]string  `json:"headers,omitempty"`
	FileURL     string             `json:"fileUrl"`
	FileName    string             `json:"fileName"`
	MessageType domain.MessageType `json:"messageType"`
	ExpiresAt   time.Time          `json:"expiresAt"`
}

type Service struct {
	presigner Presigner
	access    Access
	baseURL   string
	ttl       time.Duration
	now       func() time.Time
}

func NewService(presigner Presigner, access Access, cfg config.UploadsConfig) *Service {
	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Service{
		presigner: presigner,
		access:    access,
		baseURL:   strings.TrimRight(cfg.PublicBaseURL, "/"),
		ttl:       ttl,
		now:       time.Now,
	}
}

// Prepare validates the attachment and signs an upload for it. The file is
// not a message until the client sends its fileUrl over the channel.
func (s *Service) Prepare(ctx context.Context, caller domain.Caller, projectID, fileName, contentType string) (*Ticket, error) {
	fileName = path.Base(strings.TrimSpace(fileName))
	if projectID == "" || fileName == "" || fileName == "." || fileName == "/" {
		return nil, fmt.Errorf("%w: projectId and fileName are required", domain.ErrInvalidInput)
	}
	kind, ok := KindOf(fileName)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidInput, path.Ext(fileName))
	}
	if err := s.access.CanJoin(ctx, caller, projectID); err != nil {
		return nil, err
	}
	if contentType == "" {
		if contentType = mime.TypeByExtension(strings.ToLower(path.Ext(fileName))); contentType == "" {
			contentType = "application/octet-stream"
		}
	}

	key := path.Join(Folder, projectID, uuid.NewString()+strings.ToLower(path.Ext(fileName)))
	req, err := s.presigner.PresignPut(ctx, key, contentType, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	headers := make(map[string]string, len(req.Headers))
	for k := range req.Headers {
		if strings.EqualFold(k, "Host") {
			continue
		}
		headers[k] = req.Headers.Get(k)
	}
	return &Ticket{
		UploadURL:   req.URL,
		Method:      req.Method,
		Headers:     headers,
		FileURL:     s.baseURL + "/" + key,
		FileName:    fileName,
		MessageType: kind,
		ExpiresAt:   s.now().Add(s.ttl).UTC(),
	}, nil
}
