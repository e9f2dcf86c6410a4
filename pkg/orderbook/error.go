package orderbook

import "errors"

var (
	ErrBookFull       = errors.New("book side is full")
	ErrOrderNotFound  = errors.New("order not found")
	ErrEventQueueFull = errors.New("event queue is full")
)
