//go:build mage

// Package main contains Mage build targets for l2m developer tooling.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binDir    = "bin"
	binName   = "l2m"
	cmdPkg    = "./cmd/l2m"
	sampleDir = "sample"
	rulesFile = "l2m.yml"
)

// starterRules is written by Init when no rule file exists.
const starterRules = `substitutions:
  - name: chapter_title
    start: '\chapter{'
    end: '}'
    generate_front_matter: true
    directive:
      type: inline
  - name: section
    start: '\section{'
    end: '}'
    replacement: "## {content}"
    directive:
      type: inline
  - name: emph
    start: '\emph{'
    end: '}'
    replacement: "*{content}*"
    directive:
      type: inline
  - name: eqref
    start: '\eqref{'
    end: '}'
    sanitize: true
    replacement: "{{eq}}` + "`{content}`" + `"
    directive:
      type: inline
  - name: figure
    start: '\begin{figure}'
    end: '\end{figure}'
    flags: [DOTALL]
    directive:
      type: figure
      folder: ../static/
  - name: hint
    start: '\begin{hint}'
    end: '\end{hint}'
    flags: [DOTALL]
    directive:
      type: hint
  - name: alphabold
    start: '\begin{enumerate}'
    end: '\end{enumerate}'
    flags: [DOTALL]
    directive:
      type: itemize
  - name: definition
    start: '\begin{definition}'
    end: '\end{definition}'
    flags: [DOTALL]
    extract_label: true
    directive:
      type: prf:definition
      class: dropdown
remove_commands: [noindent, centering, medskip]
remove_comments: true
date_format: YYYY-MM-DD
`

// sampleChapter is written by Init under sample/01 Introduction/.
const sampleChapter = `\chapter{Limits}
% Drafted for the first lecture.
\noindent A sequence converges when its terms get arbitrarily close to a
limit\footnote{Cauchy made this precise.}. See \eqref{eq:lim(1)}.

\begin{definition}\label{def:limit}
A number $L$ is the limit of $(a_n)$ if ...
\end{definition}

\begin{hint}
Use the triangle inequality.
\end{hint}

\begin{enumerate}
\item Show ` + "``bounded''" + ` implies nothing.
\item Show monotone and bounded implies convergent.
\end{enumerate}

\section{Problems}
\prob{p:squeeze}{Squeeze}Prove the squeeze theorem.
\prob{p:sum}{Sums}Compute the limit of a sum.
# Solutions
\sol{p:squeeze}Bound both sides.
\sol{p:sum}Use linearity, see \eqsand{eq:a}{eq:b}.
`

// Init writes a starter rule file and a sample chapter for trying l2m.
func Init() error {
	if err := writeIfMissing(rulesFile, starterRules); err != nil {
		return err
	}
	chapter := filepath.Join(sampleDir, "01 Introduction", "limits.tex")
	if err := os.MkdirAll(filepath.Dir(chapter), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(chapter), err)
	}
	if err := writeIfMissing(chapter, sampleChapter); err != nil {
		return err
	}
	fmt.Println("Project initialized.")
	return nil
}

func writeIfMissing(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		fmt.Println("   kept", path)
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Println("  wrote", path)
	return nil
}

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	if err := sh.RunV("go", "build", "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Sample converts the sample chapters with the freshly built binary and
// checks the output.
func Sample() error {
	mg.Deps(Init, Build)

	bin := filepath.Join(binDir, binName)
	out := filepath.Join(sampleDir, "out")
	if err := sh.RunV(bin, "batch", "--rules", rulesFile,
		"--input-dir", sampleDir, "--output-dir", out,
		"--ledger", filepath.Join(sampleDir, ".l2m", "ledger.db"), "--force"); err != nil {
		return err
	}

	var converted []string
	err := filepath.WalkDir(out, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, "_converted.md") {
			converted = append(converted, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("listing %s: %w", out, err)
	}
	return sh.RunV(bin, append([]string{"check"}, converted...)...)
}

// Stats prints project metrics: Go production/test lines and documentation word count.
func Stats() error {
	var prod, tests, words int
	err := filepath.WalkDir(".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); path != "." && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")) {
				return filepath.SkipDir
			}
			return nil
		}
		switch filepath.Ext(path) {
		case ".go":
			n, err := countNonBlankLines(path)
			if err != nil {
				return err
			}
			if strings.HasSuffix(path, "_test.go") {
				tests += n
			} else {
				prod += n
			}
		case ".md", ".yml", ".yaml":
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			words += len(strings.Fields(string(data)))
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("Lines of code (Go, production): %d\n", prod)
	fmt.Printf("Lines of code (Go, tests):      %d\n", tests)
	fmt.Printf("Words (documentation):          %d\n", words)
	return nil
}

func countNonBlankLines(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	n := 0
	for line := range bytes.SplitSeq(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			n++
		}
	}
	return n, nil
}
