package storage

var MinioErr = minioErr
