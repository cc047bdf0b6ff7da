// Package storage は添付ファイルのオブジェクトストレージ機能を提供する。
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// presignExpiry は署名付きGET URLの有効期限。
const presignExpiry = 15 * time.Minute

// BlobStore は添付ファイル本体の保存先のインターフェースを定義する。
type BlobStore interface {
	// Upload はオブジェクトを保存し、保存先キーを返す。
	Upload(ctx context.Context, key string, contentType string, size int64, body io.Reader) error
	// PublicURL は保存済みオブジェクトの参照URLを返す。
	// 公開ベースURLが設定されていればそれを使い、なければ署名付きGET URLを生成する。
	PublicURL(ctx context.Context, key string) (string, error)
}

// S3Config はS3Storeの接続設定。
type S3Config struct {
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	BaseEndpoint  string // MinIO等の互換ストレージ向け。空の場合はAWS標準エンドポイント
	PublicBaseURL string // 公開バケット向けの参照ベースURL。空の場合は署名付きURLを使う
}

// S3Store はS3互換オブジェクトストレージによるBlobStoreの実装。
type S3Store struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	bucket        string
	publicBaseURL string
}

// NewS3Store はS3Storeを生成する。
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
			// MinIOはパス形式のバケットアドレスを要求する
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimSuffix(cfg.PublicBaseURL, "/"),
	}, nil
}

// StorageKey は添付ファイルの保存先キーを生成する。
// 所有メッセージのID配下に衝突しない一意なキーを作る。
func StorageKey(messageID, fileName string) string {
	return fmt.Sprintf("attachments/%s/%s-%s", messageID, uuid.NewString(), fileName)
}

// Upload はオブジェクトをバケットへ保存する。
func (s *S3Store) Upload(ctx context.Context, key string, contentType string, size int64, body io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	return nil
}

// PublicURL は保存済みオブジェクトの参照URLを返す。
func (s *S3Store) PublicURL(ctx context.Context, key string) (string, error) {
	if s.publicBaseURL != "" {
		escaped := url.PathEscape(key)
		// キー内のスラッシュはパス区切りとして保持する
		escaped = strings.ReplaceAll(escaped, "%2F", "/")
		return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucket, escaped), nil
	}

	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(presignExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign object %s: %w", key, err)
	}
	return req.URL, nil
}

// compile-time interface check
var _ BlobStore = (*S3Store)(nil)
