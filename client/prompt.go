package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"smfsp/client/worker"
)

// readLine returns the next trimmed line from stdin
func readLine(input *bufio.Reader) string {
	line, err := input.ReadString('\n')
	if err != nil && line == "" {
		fmt.Println()
		fmt.Println("Input closed")
		os.Exit(1)
	}
	return strings.TrimSpace(line)
}

// findFile looks a file up by name
func findFile(available []worker.RemoteFile, name string) (worker.RemoteFile, bool) {
	for _, f := range available {
		if f.Name == name {
			return f, true
		}
	}
	return worker.RemoteFile{}, false
}

// chooseFile asks which of the discovered files to download
func chooseFile(input *bufio.Reader, available []worker.RemoteFile) worker.RemoteFile {
	for {
		fmt.Println("Files available for download:")
		for i, f := range available {
			fmt.Printf("%d)\tfile: %s\tsize: %d\tserver: %s\n", i, f.Name, f.Size, f.Server)
		}
		fmt.Printf("Which file to download? [0 - %d] ", len(available)-1)

		val := readLine(input)
		index, err := strconv.Atoi(val)
		if err != nil || index < 0 || index >= len(available) {
			fmt.Println("Invalid input:", val)
			continue
		}

		fmt.Printf("Are you sure to download file %d: %s? [y/N] ", index, available[index].Name)
		if strings.ToLower(readLine(input)) == "y" {
			return available[index]
		}
		fmt.Println("Discarded, repeat")
	}
}

// chooseLocation confirms the download path and whether an existing file may be overwritten
func chooseLocation(input *bufio.Reader, location string, ask, overwrite bool) (string, error) {
	for {
		abs, err := filepath.Abs(location)
		if err != nil {
			return "", err
		}
		location = abs

		if ask {
			fmt.Printf("The downloaded file will be stored at: '%s', is it ok?\n", location)
			fmt.Print("\t[none to confirm, otherwise give new path]=> ")
			if candidate := readLine(input); candidate != "" {
				location = candidate
				continue
			}
		}

		if _, err := os.Stat(location); err != nil || overwrite {
			return location, nil
		}
		if !ask {
			return "", fmt.Errorf("file '%s' already exists, use --yes to overwrite it", location)
		}
		fmt.Printf("File '%s' already exists, are you SURE to overwrite it? [y/N] ", location)
		if strings.ToLower(readLine(input)) == "y" {
			fmt.Println("The file will be overwritten!")
			return location, nil
		}
		fmt.Println("Please, choose a new location for the download")
	}
}
