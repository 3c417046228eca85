package domain

import "errors"

// ErrUserNotFound возвращается, если пользователь не зарегистрирован.
var ErrUserNotFound = errors.New("пользователь не найден")

// ErrCardNotFound возвращается, если карточка не существует.
var ErrCardNotFound = errors.New("карточка не найдена")
