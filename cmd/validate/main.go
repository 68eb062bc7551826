package main

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/jwebster45206/adventure-engine/pkg/adventure"
)

const contentExt = ".mdoc"

var validIDPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

func main() {
	strict := flag.Bool("strict", false, "treat warnings as errors")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-strict] <adventure.mdoc|dir>...\n", os.Args[0])
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	failed := 0
	for _, path := range flag.Args() {
		n, err := validatePath(os.Stdout, path, *strict)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			os.Exit(1)
		}
		failed += n
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d adventure file(s) failed validation\n", failed)
		os.Exit(1)
	}
	fmt.Println("All adventure files are valid!")
}

// validatePath validates one content file, or every content file below a
// directory. It returns the number of files that failed.
func validatePath(w io.Writer, path string, strict bool) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		if validateFile(w, path, strict) {
			return 0, nil
		}
		return 1, nil
	}

	failed := 0
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) != contentExt {
			return nil
		}
		if !validateFile(w, p, strict) {
			failed++
		}
		return nil
	})
	return failed, err
}

// validateFile prints the findings for one file and reports whether it passed.
func validateFile(w io.Writer, path string, strict bool) bool {
	fmt.Fprintf(w, "Validating %s...\n", path)

	if filepath.Ext(path) != contentExt {
		fmt.Fprintf(w, "  error: adventure file must have %s extension\n", contentExt)
		return false
	}
	id := adventure.IDFromPath(path)
	if !validIDPattern.MatchString(id) {
		fmt.Fprintf(w, "  error: filename %q must be lowercase kebab-case (e.g. sky-island%s)\n", filepath.Base(path), contentExt)
		return false
	}

	adv, err := adventure.LoadFile(path)
	if err != nil {
		fmt.Fprintf(w, "  error: %v\n", err)
		return false
	}

	issues := adventure.Validate(adv)
	passed := true
	for _, issue := range issues {
		fmt.Fprintf(w, "  %s\n", issue)
		if issue.Severity == adventure.SeverityError || strict {
			passed = false
		}
	}
	if passed {
		fmt.Fprintf(w, "  ok (%d resources, %d rules, %d surges)\n", len(adv.Resources), len(adv.Rules), len(adv.Surges))
	}
	return passed
}
