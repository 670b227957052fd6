// Package backup uploads the data directory to S3 so a replacement host
// can resume with its signal history, calibrated weights and fingerprint
// store intact.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

const backupTimeout = 5 * time.Minute

// Checkpointer is a live database that can flush its WAL before its file
// is read for upload.
type Checkpointer interface {
	Name() string
	WALCheckpoint(mode string) error
}

type uploaderAPI interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Service uploads data-directory files to an S3 bucket.
type Service struct {
	uploader  uploaderAPI
	bucket    string
	dataDir   string
	databases []Checkpointer
	log       zerolog.Logger
	now       func() time.Time
}

// NewService builds the S3 client. An explicit key pair pins static
// credentials; empty keys fall through to the default chain.
func NewService(ctx context.Context, region, accessKey, secretKey, bucket, dataDir string, databases []Checkpointer, log zerolog.Logger) (*Service, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Service{
		uploader:  manager.NewUploader(s3.NewFromConfig(awsCfg)),
		bucket:    bucket,
		dataDir:   dataDir,
		databases: databases,
		log:       log.With().Str("component", "backup").Logger(),
		now:       time.Now,
	}, nil
}

// Backup checkpoints every live database, then uploads each .db and .json
// file under the data directory to s3://bucket/hydra/<date>/<name>.
func (s *Service) Backup(ctx context.Context) error {
	start := s.now()

	for _, db := range s.databases {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			s.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed, uploading anyway")
		}
	}

	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return fmt.Errorf("read data dir: %w", err)
	}

	prefix := fmt.Sprintf("hydra/%s", s.now().UTC().Format("2006-01-02"))
	uploaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".db") && !strings.HasSuffix(name, ".json") {
			continue
		}

		if err := s.uploadFile(ctx, filepath.Join(s.dataDir, name), prefix+"/"+name); err != nil {
			s.log.Error().Err(err).Str("file", name).Msg("Upload failed")
			continue
		}
		uploaded++
	}

	s.log.Info().
		Int("files", uploaded).
		Str("prefix", prefix).
		Dur("took", time.Since(start)).
		Msg("Backup complete")
	return nil
}

func (s *Service) uploadFile(ctx context.Context, path, key string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// Job adapts the service to the scheduler's job contract.
type Job struct {
	service *Service
}

// NewJob wraps the service for nightly scheduling.
func NewJob(service *Service) *Job {
	return &Job{service: service}
}

// Name implements the scheduler job contract.
func (j *Job) Name() string { return "backup" }

// Run uploads one backup set.
func (j *Job) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), backupTimeout)
	defer cancel()
	return j.service.Backup(ctx)
}
