// Package rubric selects the scoring rubric for a problem and turns the
// grader's reply into a validated evaluation.
package rubric

import "github.com/pavelanni/interviewer/internal/model"

// Criterion is one weighted scoring line.
type Criterion struct {
	Key         string
	Name        string
	Description string
	Max         int
}

// Rubric is a named set of weighted criteria for one category.
type Rubric struct {
	Name     string
	Category model.Category
	Intro    string
	Criteria []Criterion
}

// Total is the maximum attainable score.
func (r Rubric) Total() int {
	total := 0
	for _, c := range r.Criteria {
		total += c.Max
	}
	return total
}

// Names lists criterion display names in order.
func (r Rubric) Names() []string {
	names := make([]string, len(r.Criteria))
	for i, c := range r.Criteria {
		names[i] = c.Name
	}
	return names
}

var science = Rubric{
	Name:     "science",
	Category: model.CategoryScience,
	Intro: "This problem measures the candidate's biology, chemistry and physics knowledge and its application. " +
		"Focus on understanding of scientific principles and the inference process; do not force ethical values into it.",
	Criteria: []Criterion{
		{Key: "scientific_knowledge", Name: "Scientific knowledge", Max: 30,
			Description: "Identifies the key concepts of the passage accurately."},
		{Key: "logical_reasoning", Name: "Logical reasoning", Max: 30,
			Description: "Draws valid conclusions from the given conditions with quantitative or scientific grounds."},
		{Key: "application_synthesis", Name: "Application and synthesis", Max: 20,
			Description: "Applies knowledge to new situations such as clinical settings or experiment interpretation."},
		{Key: "communication", Name: "Communication", Max: 20,
			Description: "Explains complex scientific concepts clearly."},
	},
}

var ethics = Rubric{
	Name:     "ethics",
	Category: model.CategoryEthics,
	Intro: "This problem measures the candidate's values, ethical judgment and communication. " +
		"There is no single right answer; consistency of logic and attitude matter.",
	Criteria: []Criterion{
		{Key: "ethical_reasoning", Name: "Ethical reasoning", Max: 30,
			Description: "Understands principles of medical ethics and shows respect for persons."},
		{Key: "logical_thinking", Name: "Logical thinking", Max: 30,
			Description: "Supports the position with valid, consistent grounds."},
		{Key: "communication", Name: "Communication", Max: 20,
			Description: "Uses appropriate terms and delivers the message well."},
		{Key: "adaptability", Name: "Adaptability", Max: 20,
			Description: "Shows a balanced view when facing counterarguments and dilemmas."},
	},
}

// Select returns the rubric for a category. Anything but science gets ethics.
func Select(c model.Category) Rubric {
	if c == model.CategoryScience {
		return science
	}
	return ethics
}

// opposing returns the rubric the grader must not apply.
func opposing(c model.Category) Rubric {
	if c == model.CategoryScience {
		return ethics
	}
	return science
}
