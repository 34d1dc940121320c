package stores

import (
	"os"

	"github.com/sirupsen/logrus"

	"design-studio/core"
	"design-studio/stores/aws"
	"design-studio/stores/filesystem"
	"design-studio/stores/memory"
	"design-studio/stores/postgres"
	"design-studio/stores/sqlite"
)

// Store is a union interface that includes all store types.
type Store interface {
	core.DesignStore
	core.CartStore
}

func GetStore() Store {
	storageType := os.Getenv("STORAGE_TYPE")
	var store Store

	storageField := logrus.Fields{
		"storageType": storageType,
	}

	switch storageType {
	case "filesystem":
		basePath := os.Getenv("LOCAL_STORAGE_PATH")
		if basePath == "" {
			basePath = "./data" // Default path
		}
		storageField["basePath"] = basePath
		store = filesystem.NewStore(basePath)
	case "sqlite":
		dataSourceName := os.Getenv("DATA_SOURCE_NAME")
		if dataSourceName == "" {
			dataSourceName = "designs.db" // Default filename
		}
		storageField["dataSourceName"] = dataSourceName
		store = sqlite.NewStore(dataSourceName)
	case "postgres":
		databaseURL := os.Getenv("DATABASE_URL")
		if databaseURL == "" {
			logrus.Fatal("DATABASE_URL environment variable must be set for postgres storage type")
		}
		store = postgres.NewStore(databaseURL)
	case "s3":
		bucketName := os.Getenv("S3_BUCKET_NAME")
		if bucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		endpoint := os.Getenv("S3_ENDPOINT")
		storageField["bucketName"] = bucketName
		storageField["endpoint"] = endpoint
		store = aws.NewStore(bucketName, endpoint)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
