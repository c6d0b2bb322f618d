package metaspace

import "fmt"

// roundup size to the next multiple of align, align > 0.
func roundup(size, align int64) int64 {
	if size <= 0 {
		return align
	}
	return ((size + align - 1) / align) * align
}

func divceil(a, b int64) int64 {
	return (a + b - 1) / b
}

func maxint64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minint64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func wordstobytes(words int64) int64 {
	return words * Wordsize
}

func bytestowords(size int64) int64 {
	return divceil(size, Wordsize)
}

func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}
