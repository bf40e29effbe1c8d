// Command encode-client base64-encodes a PDF invoice and submits it to a
// running extraction server, printing the reconciled record. With -out it
// writes the encoded payload to a file instead of calling the server.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func main() {
	file := flag.String("file", "", "path to the PDF invoice")
	server := flag.String("server", "http://localhost:5050", "extraction server base URL")
	out := flag.String("out", "", "write the base64 payload to this file instead of posting")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: encode-client -file invoice.pdf [-server URL | -out payload.txt]")
		os.Exit(2)
	}

	content, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", *file, err)
		os.Exit(1)
	}
	encoded := base64.StdEncoding.EncodeToString(content)

	if *out != "" {
		if err := os.WriteFile(*out, []byte(encoded), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", *out, err)
			os.Exit(1)
		}
		fmt.Printf("encoded %s to %s\n", *file, *out)
		return
	}

	ext := strings.TrimPrefix(filepath.Ext(*file), ".")
	body, err := json.Marshal(map[string]string{"data": encoded, "ext": ext})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build request: %v\n", err)
		os.Exit(1)
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Post(*server+"/extract", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read response: %v\n", err)
		os.Exit(1)
	}

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "server returned %s: %s\n", resp.Status, payload)
		os.Exit(1)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, payload, "", "  "); err != nil {
		fmt.Println(string(payload))
		return
	}
	fmt.Println(pretty.String())
}
