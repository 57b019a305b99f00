package parser

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/harrison/runci/internal/models"
)

// MarkdownParser parses workflow definitions written as Markdown documents.
// Each level-2 heading of the form "## Job <id>: <name>" opens a job section;
// the job's steps are listed in a fenced code block or a bullet list.
type MarkdownParser struct {
	markdown goldmark.Markdown
}

// NewMarkdownParser creates a new Markdown workflow parser
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		markdown: goldmark.New(),
	}
}

// markdownFrontmatter is the YAML frontmatter shape for Markdown workflows
type markdownFrontmatter struct {
	Name    string            `yaml:"name"`
	On      yaml.Node         `yaml:"on"`
	Env     map[string]string `yaml:"env"`
	EnvFile string            `yaml:"env_file"`
}

// Parse reads a Markdown workflow definition from r
func (p *MarkdownParser) Parse(r io.Reader) (*models.Workflow, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	workflow := &models.Workflow{}
	content, frontmatter := extractFrontmatter(content)
	if frontmatter != nil {
		if err := parseWorkflowFrontmatter(frontmatter, workflow); err != nil {
			return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
		}
	}

	// Parse the markdown AST to locate job headings. Goldmark gives us
	// reliable heading detection (it knows about setext headings and
	// headings inside block quotes); job bodies are then extracted
	// line by line, which handles fenced blocks predictably.
	doc := p.markdown.Parser().Parse(text.NewReader(content))
	headings := collectJobHeadings(doc, content)

	jobs, err := extractJobsLineByLine(content, headings)
	if err != nil {
		return nil, err
	}

	workflow.Jobs = jobs
	return workflow, nil
}

var jobHeadingRegex = regexp.MustCompile(`^Job\s+([A-Za-z0-9_-]+)(?::\s*(.*))?$`)

// collectJobHeadings walks the AST and returns the heading texts that
// declare jobs, keyed by heading text for later line matching
func collectJobHeadings(doc ast.Node, source []byte) map[string]bool {
	headings := make(map[string]bool)

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if heading, ok := n.(*ast.Heading); ok && heading.Level == 2 {
			headingText := extractText(heading, source)
			if jobHeadingRegex.MatchString(headingText) {
				headings[headingText] = true
			}
		}
		return ast.WalkContinue, nil
	})

	return headings
}

// extractText extracts plain text from an AST node
func extractText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Segment.Value(source))
		}
	}
	return buf.String()
}

// extractJobsLineByLine extracts job sections by scanning the document line
// by line, using the heading set collected from the AST
func extractJobsLineByLine(content []byte, headings map[string]bool) ([]models.Job, error) {
	lineHeadingRegex := regexp.MustCompile(`^##\s+(.+?)\s*$`)

	lines := strings.Split(string(content), "\n")
	var jobs []models.Job
	var currentJob *models.Job
	var jobContent strings.Builder
	inCodeBlock := false

	flush := func() error {
		if currentJob == nil {
			return nil
		}
		if err := parseJobBody(currentJob, jobContent.String()); err != nil {
			return err
		}
		jobs = append(jobs, *currentJob)
		currentJob = nil
		jobContent.Reset()
		return nil
	}

	for _, line := range lines {
		// Track fenced code block state so headings inside code examples
		// never open a new job section
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCodeBlock = !inCodeBlock
			if currentJob != nil {
				jobContent.WriteString(line)
				jobContent.WriteString("\n")
			}
			continue
		}
		if inCodeBlock {
			if currentJob != nil {
				jobContent.WriteString(line)
				jobContent.WriteString("\n")
			}
			continue
		}

		if matches := lineHeadingRegex.FindStringSubmatch(line); len(matches) == 2 {
			headingText := matches[1]
			jobMatch := jobHeadingRegex.FindStringSubmatch(headingText)
			if jobMatch != nil && headings[headingText] {
				if err := flush(); err != nil {
					return nil, err
				}
				currentJob = &models.Job{
					ID:   jobMatch[1],
					Name: strings.TrimSpace(jobMatch[2]),
				}
				continue
			}
			// A non-job level-2 heading closes the current job section
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}

		if currentJob != nil {
			jobContent.WriteString(line)
			jobContent.WriteString("\n")
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}

	return jobs, nil
}

// parseJobBody extracts metadata and steps from a job section body
func parseJobBody(job *models.Job, content string) error {
	// Strip code blocks before metadata extraction so commands that happen
	// to contain "**Needs**:" are not misread
	contentWithoutCode := removeCodeBlocks(content)

	// Parse **Needs**: job ids, comma separated
	needsRegex := regexp.MustCompile(`\*\*Needs\*\*:\s*(.+)`)
	if matches := needsRegex.FindStringSubmatch(contentWithoutCode); len(matches) > 1 {
		needsStr := strings.TrimSpace(matches[1])
		if !strings.EqualFold(needsStr, "none") {
			for _, part := range strings.Split(needsStr, ",") {
				part = strings.TrimSpace(part)
				if part != "" {
					job.Needs = append(job.Needs, part)
				}
			}
		}
	}

	// Parse **Timeout**: Go duration ("30m", "1h30m")
	timeoutRegex := regexp.MustCompile(`\*\*Timeout\*\*:\s*(\S+)`)
	if matches := timeoutRegex.FindStringSubmatch(contentWithoutCode); len(matches) > 1 {
		timeout, err := time.ParseDuration(strings.TrimSpace(matches[1]))
		if err != nil {
			return fmt.Errorf("job %q: invalid timeout %q: %w", job.ID, matches[1], err)
		}
		job.Timeout = timeout
	}

	// Parse **Working dir**:
	workingDirRegex := regexp.MustCompile(`\*\*Working dir\*\*:\s*(\S+)`)
	if matches := workingDirRegex.FindStringSubmatch(contentWithoutCode); len(matches) > 1 {
		job.WorkingDir = strings.TrimSpace(matches[1])
	}

	// Parse **Env**: KEY=VALUE pairs, comma separated
	envRegex := regexp.MustCompile(`\*\*Env\*\*:\s*(.+)`)
	if matches := envRegex.FindStringSubmatch(contentWithoutCode); len(matches) > 1 {
		for _, pair := range strings.Split(matches[1], ",") {
			pair = strings.TrimSpace(pair)
			if pair == "" {
				continue
			}
			key, value, found := strings.Cut(pair, "=")
			if !found {
				return fmt.Errorf("job %q: invalid env entry %q (expected KEY=VALUE)", job.ID, pair)
			}
			if job.Env == nil {
				job.Env = make(map[string]string)
			}
			job.Env[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
	}

	// Parse **Continue on error**: yes|true
	continueRegex := regexp.MustCompile(`\*\*Continue on error\*\*:\s*(\S+)`)
	if matches := continueRegex.FindStringSubmatch(contentWithoutCode); len(matches) > 1 {
		value := strings.ToLower(strings.TrimSpace(matches[1]))
		job.ContinueOnError = value == "yes" || value == "true"
	}

	// Steps come from a fenced code block or a bullet list
	commands, shell := parseStepCommands(content)
	for _, command := range commands {
		job.Steps = append(job.Steps, models.Step{Run: command, Shell: shell})
	}

	return nil
}

// removeCodeBlocks strips fenced code blocks from content
func removeCodeBlocks(content string) string {
	lines := strings.Split(content, "\n")
	var result strings.Builder
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		if !inCodeBlock {
			result.WriteString(line)
			result.WriteString("\n")
		}
	}

	return result.String()
}

// parseStepCommands extracts step commands from a job body.
// Supports two formats:
//  1. Fenced code block: ```sh\ncommand1\ncommand2\n``` (one command per line;
//     the info string selects the shell)
//  2. Bullet list: - command1\n- command2
func parseStepCommands(content string) ([]string, string) {
	lines := strings.Split(content, "\n")

	// Prefer a fenced code block if one exists
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			shell := strings.TrimPrefix(trimmed, "```")
			shell = strings.TrimSpace(shell)
			if shell != "sh" && shell != "bash" {
				shell = ""
			}
			return parseCommandsCodeBlock(lines, i), shell
		}
	}

	// Otherwise, collect bullet list items
	var commands []string
	bulletRegex := regexp.MustCompile(`^\s*-\s+(.+)$`)
	for _, line := range lines {
		// Metadata bullets like "- **Needs**: a" are not commands
		if matches := bulletRegex.FindStringSubmatch(line); len(matches) > 1 {
			command := strings.TrimSpace(matches[1])
			if command != "" && !strings.HasPrefix(command, "**") {
				commands = append(commands, command)
			}
		}
	}
	return commands, ""
}

// parseCommandsCodeBlock extracts commands from a fenced code block,
// starting from the line with the opening fence (at startIdx)
func parseCommandsCodeBlock(lines []string, startIdx int) []string {
	var commands []string

	for i := startIdx + 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		// Stop at the closing fence
		if strings.HasPrefix(line, "```") {
			break
		}

		// Skip blank lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		commands = append(commands, line)
	}

	return commands
}

// extractFrontmatter extracts YAML frontmatter from markdown content.
// Returns the content without frontmatter and the frontmatter bytes.
func extractFrontmatter(content []byte) ([]byte, []byte) {
	lines := bytes.Split(content, []byte("\n"))

	// Check if starts with ---
	if len(lines) < 3 || !bytes.Equal(bytes.TrimSpace(lines[0]), []byte("---")) {
		return content, nil
	}

	// Find closing ---
	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), []byte("---")) {
			frontmatter := bytes.Join(lines[1:i], []byte("\n"))
			body := bytes.Join(lines[i+1:], []byte("\n"))
			return body, frontmatter
		}
	}

	// No closing delimiter found
	return content, nil
}

// parseWorkflowFrontmatter parses workflow-level settings from frontmatter
func parseWorkflowFrontmatter(frontmatter []byte, workflow *models.Workflow) error {
	var fm markdownFrontmatter
	if err := yaml.Unmarshal(frontmatter, &fm); err != nil {
		return err
	}

	workflow.Name = fm.Name
	workflow.Env = fm.Env
	workflow.EnvFile = fm.EnvFile

	trigger, err := parseTrigger(&fm.On)
	if err != nil {
		return err
	}
	workflow.On = trigger

	return nil
}
