package pipeline

import (
	"fmt"
	"strings"
)

const discoverySystemPrompt = `You are a creative title strategist. Given a theme and optional
title style, propose distinct working titles for a long-form written piece.
Respond with JSON only: {"titles": ["...", ...]}. Every title must be unique
and under twelve words.`

const researchSystemPrompt = `You are a thorough research assistant. Given a working title and
theme, produce concrete factual insights, angles, and supporting points an
author could build a long-form piece from. Respond with JSON only:
{"insights": ["...", ...]}. Each insight must be a self-contained sentence.`

const curationSystemPrompt = `You are a long-form writer. Given a title, theme, and research
insights, write the full piece in Markdown plus a short companion summary.
Respond with JSON only: {"document": "...", "companion": "..."}. The document
must be complete Markdown starting with a level-one heading; the companion is
a few paragraphs of standalone reader guidance.`

const editingSystemPrompt = `You are a precise editor. Refine the supplied document and
companion for clarity, flow, and consistency with the requested author style
without changing their structure or meaning. Respond with JSON only:
{"document": "...", "companion": "..."}.`

func discoveryUserPrompt(theme, titleStyle string, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Theme: %s\n", theme)
	if strings.TrimSpace(titleStyle) != "" {
		fmt.Fprintf(&b, "Title style: %s\n", titleStyle)
	}
	fmt.Fprintf(&b, "Propose exactly %d titles.", count)
	return b.String()
}

func researchUserPrompt(title, theme string, budget int) string {
	return fmt.Sprintf("Title: %s\nTheme: %s\nProvide up to %d insights.", title, theme, budget)
}

func curationUserPrompt(title, theme string, insights []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\nTheme: %s\nInsights:\n", title, theme)
	for _, insight := range insights {
		fmt.Fprintf(&b, "- %s\n", insight)
	}
	return b.String()
}

func editingUserPrompt(authorStyle, document, companion string) string {
	var b strings.Builder
	if strings.TrimSpace(authorStyle) != "" {
		fmt.Fprintf(&b, "Author style: %s\n\n", authorStyle)
	}
	fmt.Fprintf(&b, "Document:\n%s\n\nCompanion:\n%s", document, companion)
	return b.String()
}

func coverPrompt(title, theme string) string {
	return fmt.Sprintf("Book-style cover illustration for %q, themed around %s. No text in the image.", title, theme)
}
