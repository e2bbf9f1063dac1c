package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/matchboxhq/matchbox/extract"
	"github.com/matchboxhq/matchbox/log"
)

// toolName is the function the model is instructed to call.
const toolName = "extract_resume_details"

// resumeTextLimit caps how many characters of extracted text go into the
// prompt, keeping it inside the model's context window.
const resumeTextLimit = 4000

// availableTools is the tool list serialized into the prompt, following the
// Mistral v0.3 instruct format. The parameters schema mirrors ResumeDetails.
const availableTools = `[{"type": "function", "function": {"name": "extract_resume_details", "description": "Extracts structured information from a resume.", "parameters": {"type": "object", "properties": {"skills": {"type": "array", "items": {"type": "string"}, "description": "A list of key skills, technologies, and methodologies."}, "work_experience": {"type": "array", "items": {"type": "object", "properties": {"title": {"type": "string", "description": "The job title"}, "company": {"type": "string", "description": "The name of the company"}, "duration": {"type": "string", "description": "The duration of employment, e.g., '2020-2023'"}}, "required": ["title", "company", "duration"]}, "description": "A list of professional work experiences."}, "education": {"type": "array", "items": {"type": "object", "properties": {"degree": {"type": "string", "description": "The degree obtained"}, "institution": {"type": "string", "description": "The name of the institution"}}, "required": ["degree", "institution"]}, "description": "A list of educational qualifications."}}, "required": ["skills", "work_experience", "education"]}}}]`

// ResumeDetails is the structured document extracted from a resume.
type ResumeDetails struct {
	Skills         []string         `json:"skills" validate:"required"`
	WorkExperience []WorkExperience `json:"work_experience" validate:"required,dive"`
	Education      []Education      `json:"education" validate:"required,dive"`
}

// WorkExperience is one entry of a resume's employment history.
type WorkExperience struct {
	Title    string `json:"title" validate:"required"`
	Company  string `json:"company" validate:"required"`
	Duration string `json:"duration" validate:"required"`
}

// Education is one entry of a resume's education history.
type Education struct {
	Degree      string `json:"degree" validate:"required"`
	Institution string `json:"institution" validate:"required"`
}

// ParseResume downloads a resume, extracts its text and asks the hosted
// model to return the structured details through a forced tool call. The
// returned string is the canonical JSON of the validated document.
func (p *Pipeline) ParseResume(ctx context.Context, resumeURL string) (string, error) {
	log.INFO.Printf("Parsing resume at %s", resumeURL)

	document, err := p.fetch(ctx, resumeURL)
	if err != nil {
		return "", NewFetchError(err)
	}

	resumeText, err := extract.Text(document)
	if err != nil {
		return "", NewExtractionError(err)
	}

	raw, err := p.generator.Generate(ctx, buildPrompt(resumeText))
	if err != nil {
		return "", NewInferenceError(err)
	}

	arguments, err := toolCallArguments(raw)
	if err != nil {
		return "", NewFormatError(err)
	}

	var details ResumeDetails
	if err := json.Unmarshal(arguments, &details); err != nil {
		return "", NewSchemaError(err)
	}
	if err := p.validate.Struct(&details); err != nil {
		return "", NewSchemaError(err)
	}

	out, err := json.Marshal(&details)
	if err != nil {
		return "", errors.Wrap(err, "encode resume details")
	}

	log.INFO.Printf("Parsed resume at %s: %d skills, %d positions", resumeURL, len(details.Skills), len(details.WorkExperience))
	return string(out), nil
}

func (p *Pipeline) fetch(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build download request")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "download")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("GET %s returned %d", fileURL, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// buildPrompt lays the tool list and the resume text out in the Mistral v0.3
// instruct format.
func buildPrompt(resumeText string) string {
	// The limit counts characters, not bytes.
	if runes := []rune(resumeText); len(runes) > resumeTextLimit {
		resumeText = string(runes[:resumeTextLimit])
	}
	return fmt.Sprintf("<s>[AVAILABLE_TOOLS]%s[/AVAILABLE_TOOLS][INST] Extract the details from this resume text:\n\n%s[/INST]", availableTools, resumeText)
}

// toolCallArguments pulls the arguments object out of the model's raw
// output. The model wraps the call in a [TOOL_CALLS] list; decoding a single
// object from the first `{"name":` offset tolerates the list suffix and any
// trailing commentary.
func toolCallArguments(raw string) (json.RawMessage, error) {
	start := strings.Index(raw, `{"name":`)
	if start == -1 {
		return nil, errors.New("tool call not found in model output")
	}

	var call struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.NewDecoder(strings.NewReader(raw[start:])).Decode(&call); err != nil {
		return nil, errors.Wrap(err, "decode tool call")
	}
	if call.Name != toolName {
		return nil, errors.Errorf("model called %q, want %q", call.Name, toolName)
	}
	if len(call.Arguments) == 0 {
		return nil, errors.New("tool call carries no arguments")
	}

	return call.Arguments, nil
}
