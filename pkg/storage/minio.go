// Package storage 提供了聊天快照到对象存储（MinIO）的归档功能。
package storage

import (
	"bytes"
	"context"
	"fmt"

	"dreamcatcher-llm-go/internal/config"
	"dreamcatcher-llm-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioArchiver 把快照文件按原文件名写入指定存储桶。
type MinioArchiver struct {
	client *minio.Client
	bucket string
}

// NewMinioArchiver 初始化 MinIO 客户端并确保存储桶存在。
func NewMinioArchiver(ctx context.Context, cfg config.MinIOConfig) (*MinioArchiver, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
	}
	log.Infof("MinIO 快照归档已启用, bucket: %s", cfg.BucketName)
	return &MinioArchiver{client: client, bucket: cfg.BucketName}, nil
}

// Archive 上传一个快照对象。
func (a *MinioArchiver) Archive(ctx context.Context, name string, data []byte) error {
	_, err := a.client.PutObject(ctx, a.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}
