package main

import (
	"context"
	"flag"
	"log"
	"snapshot-diff/internal/env"
	"snapshot-diff/internal/runnable"
	"snapshot-diff/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	var debug bool
	var storageBackend string
	var s3Bucket string
	var s3Prefix string
	flag.BoolVar(&debug, "debug", env.OrDefault("DEBUG", false), "Enable text logs and pprof endpoints")
	flag.StringVar(&storageBackend, "storage-backend", env.OrDefault("STORAGE_BACKEND", "file"), "Where diff images go (file or s3)")
	flag.StringVar(&s3Bucket, "s3-bucket", env.OrDefault("S3_BUCKET", ""), "Bucket for the s3 storage backend")
	flag.StringVar(&s3Prefix, "s3-prefix", env.OrDefault("S3_PREFIX", ""), "Key prefix for diff images in the s3 storage backend")
	flag.Parse()

	runnable.Debug = debug

	ctx := context.Background()

	var sink storage.Storage
	switch storageBackend {
	case "file":
	case "s3":
		s3, err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket: s3Bucket,
			Prefix: s3Prefix,
		})
		if err != nil {
			log.Fatalf("unable to create S3 storage backend: %v", err)
		}
		sink = s3
	default:
		log.Fatalf("unknown storage backend: %s", storageBackend)
	}

	server := runnable.NewServer(sink)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
