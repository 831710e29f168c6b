package ringio_test

import (
	"fmt"
	"strings"

	"ringio"
)

func ExampleRingBuffer() {
	b := ringio.NewRingBuffer(8)
	_ = b.Append([]byte("ABCDE"))

	head := make([]byte, 3)
	_ = b.Peek(head)
	fmt.Printf("head: %s\n", head)

	b.Advance(3)
	fmt.Printf("left: %d\n", b.Len())
	// Output:
	// head: ABC
	// left: 2
}

func ExampleBufferedReader() {
	buf := ringio.NewRingBuffer(8)
	r := ringio.NewBufferedReader(buf, strings.NewReader("GET /index\r\n"))

	method := make([]byte, 3)
	if _, err := r.Peek(method); err != nil {
		panic(err)
	}
	fmt.Printf("method: %s\n", method)

	line := make([]byte, 10)
	if _, err := r.Read(line); err != nil {
		panic(err)
	}
	fmt.Printf("line: %s\n", line)
	// Output:
	// method: GET
	// line: GET /index
}
