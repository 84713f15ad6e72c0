package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
)

// Reads "index;name;value" lines (RFC 7541 Appendix A) and prints the
// statements that fill the static table in internal/hpack.
func main() {
	var path = flag.String("content", "", "The content of the file to insert")
	flag.Parse()

	if *path == "" {
		panic("The file path is required")
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}

		splitLine := strings.SplitN(scanner.Text(), ";", 3)
		if len(splitLine) != 3 {
			log.Fatalf("line %d: expected index;name;value", lineNumber)
		}
		for i, element := range splitLine {
			splitLine[i] = strings.TrimSpace(element)
		}

		fmt.Printf("staticTable_[%v] = NewHeaderField(%q, %q)\n", splitLine[0], splitLine[1], splitLine[2])
	}

	if err := scanner.Err(); err != nil {
		log.Fatal(err)
	}
}
