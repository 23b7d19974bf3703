package persistence

import "fmt"

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("error in underline storage layer: %s", e.Message)
}

type NotFoundError struct {
	Entity string
	Id     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.Id)
}

func IsNotFound(err error) bool {
	_, ok := err.(NotFoundError)
	return ok
}
