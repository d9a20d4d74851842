package repo

import "errors"

// Ошибки слоя персистентности.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись с таким ключом уже существует.
	ErrAlreadyExists = errors.New("already exists")
)
