// Package typemeta holds the static descriptions for personality type codes.
package typemeta

import (
	"strings"

	"github.com/mind-engage/mindengage-assess/internal/scoring"
)

// Table is a read-only type code → description lookup.
type Table map[scoring.AssessmentType]map[string]scoring.TypeInfo

func (t Table) Lookup(at scoring.AssessmentType, code string) (scoring.TypeInfo, bool) {
	byCode, ok := t[at]
	if !ok {
		return scoring.TypeInfo{}, false
	}
	info, ok := byCode[strings.ToUpper(code)]
	return info, ok
}

// Default returns the built-in MBTI and DISC tables.
func Default() Table {
	return Table{
		scoring.MBTI: mbti,
		scoring.DISC: disc,
	}
}

func info(name, desc string, strengths, careers []string) scoring.TypeInfo {
	return scoring.TypeInfo{Name: name, Description: desc, Strengths: strengths, Careers: careers}
}

var mbti = map[string]scoring.TypeInfo{
	"ISTJ": info("The Inspector", "Responsible, thorough and dependable; values order and tradition.",
		[]string{"Reliable", "Detail-oriented", "Organized"}, []string{"Accountant", "Auditor", "Logistics Manager"}),
	"ISFJ": info("The Protector", "Warm, conscientious and committed to meeting obligations.",
		[]string{"Supportive", "Patient", "Observant"}, []string{"Nurse", "Teacher", "Administrator"}),
	"INFJ": info("The Counselor", "Insightful and principled; seeks meaning and connection.",
		[]string{"Empathetic", "Visionary", "Determined"}, []string{"Counselor", "Writer", "HR Specialist"}),
	"INTJ": info("The Architect", "Strategic, independent thinker with a drive to improve systems.",
		[]string{"Strategic", "Analytical", "Decisive"}, []string{"Engineer", "Scientist", "Strategist"}),
	"ISTP": info("The Craftsman", "Practical problem solver who learns by doing.",
		[]string{"Adaptable", "Hands-on", "Calm under pressure"}, []string{"Technician", "Mechanic", "Pilot"}),
	"ISFP": info("The Composer", "Gentle, sensitive and attuned to the present moment.",
		[]string{"Creative", "Loyal", "Flexible"}, []string{"Designer", "Artist", "Veterinary Assistant"}),
	"INFP": info("The Mediator", "Idealistic and values-driven; looks for the good in people.",
		[]string{"Compassionate", "Open-minded", "Imaginative"}, []string{"Psychologist", "Editor", "Social Worker"}),
	"INTP": info("The Thinker", "Logical and curious; enjoys theories and abstract problems.",
		[]string{"Objective", "Inventive", "Precise"}, []string{"Programmer", "Researcher", "Analyst"}),
	"ESTP": info("The Persuader", "Energetic and pragmatic; acts quickly on opportunities.",
		[]string{"Bold", "Resourceful", "Sociable"}, []string{"Sales Representative", "Entrepreneur", "Paramedic"}),
	"ESFP": info("The Performer", "Spontaneous and enthusiastic; enjoys people and experiences.",
		[]string{"Friendly", "Practical", "Optimistic"}, []string{"Event Planner", "Trainer", "Hospitality Manager"}),
	"ENFP": info("The Champion", "Enthusiastic and creative; sees possibilities everywhere.",
		[]string{"Inspiring", "Curious", "Communicative"}, []string{"Marketer", "Consultant", "Journalist"}),
	"ENTP": info("The Debater", "Quick, ingenious and outspoken; enjoys intellectual challenge.",
		[]string{"Innovative", "Energetic", "Persuasive"}, []string{"Product Manager", "Lawyer", "Founder"}),
	"ESTJ": info("The Supervisor", "Organized and decisive; brings structure and gets things done.",
		[]string{"Dependable", "Direct", "Efficient"}, []string{"Operations Manager", "Project Manager", "Officer"}),
	"ESFJ": info("The Provider", "Caring and sociable; attentive to the needs of others.",
		[]string{"Cooperative", "Warm", "Conscientious"}, []string{"Healthcare Worker", "Customer Success", "Teacher"}),
	"ENFJ": info("The Teacher", "Charismatic and empathetic; motivates others toward growth.",
		[]string{"Leadership", "Altruistic", "Articulate"}, []string{"Manager", "Coach", "Public Relations"}),
	"ENTJ": info("The Commander", "Bold and strategic leader who organizes people toward goals.",
		[]string{"Confident", "Efficient", "Long-range planning"}, []string{"Executive", "Consultant", "Director"}),
}

var disc = map[string]scoring.TypeInfo{
	"D": info("Dominance", "Direct, results-oriented and firm; focuses on overcoming challenges.",
		[]string{"Decisive", "Competitive", "Driven"}, []string{"Manager", "Entrepreneur", "Team Lead"}),
	"I": info("Influence", "Outgoing, enthusiastic and persuasive; focuses on relationships.",
		[]string{"Optimistic", "Collaborative", "Expressive"}, []string{"Sales", "Marketing", "Public Relations"}),
	"S": info("Steadiness", "Even-tempered, patient and dependable; values cooperation.",
		[]string{"Supportive", "Consistent", "Good listener"}, []string{"Customer Support", "Human Resources", "Nursing"}),
	"C": info("Conscientiousness", "Analytical, precise and systematic; values quality and accuracy.",
		[]string{"Accurate", "Careful", "Objective"}, []string{"Quality Assurance", "Finance", "Engineering"}),
}
