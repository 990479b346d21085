package main

import "os"

func cmdOut() *os.File { return os.Stdout }
