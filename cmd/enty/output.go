package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Sevewell/enty/internal/domain"
)

var stdout io.Writer = os.Stdout

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, string(b))
	return nil
}

func printKV(rows [][2]string) {
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
	}
	_ = w.Flush()
}

func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(stdout, "no results")
		return
	}
	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	_ = w.Flush()
}

func uintToString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func formatMaybeUint(v *uint) string {
	if v == nil {
		return "-"
	}
	return uintToString(*v)
}

func formatMaybeInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

// stringOrEmpty renders a missing title, such as a dangling reference, as "".
func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatDate(d *domain.Date) string {
	if d == nil || d.IsZero() {
		return "-"
	}
	return d.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func printEntityClasses(items []domain.EntityClass) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{uintToString(item.ID), item.Title})
	}
	printTable([]string{"ID", "TITLE"}, rows)
}

func printAttributeClasses(items []domain.AttributeClass) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.ID),
			item.Title,
			item.DataType,
			formatMaybeInt(item.OrderDisplay),
		})
	}
	printTable([]string{"ID", "TITLE", "DATA_TYPE", "ORDER"}, rows)
}

func printRelationClasses(items []domain.RelationClass) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.ID),
			item.Title,
			item.FromClassTitle,
			item.ToClassTitle,
		})
	}
	printTable([]string{"ID", "TITLE", "FROM", "TO"}, rows)
}

func printEntities(items []domain.Entity) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.ID),
			item.ClassTitle,
			item.Title,
			formatDate(item.DateIn),
			formatDate(item.DateOut),
		})
	}
	printTable([]string{"ID", "CLASS", "TITLE", "DATE_IN", "DATE_OUT"}, rows)
}

func printSubmission(sub domain.Submission) {
	printKV([][2]string{
		{"id", uintToString(sub.Entity.ID)},
		{"title", sub.Entity.Title},
		{"facts_recorded", strconv.Itoa(len(sub.Facts))},
	})
	for _, w := range sub.Warnings {
		_, _ = fmt.Fprintf(stdout, "warning: attribute %d: %s\n", w.AttributeClassID, w.Message)
	}
}

func printAttributeValues(items []domain.AttributeValue) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		value := item.Value
		if item.ReferenceTitle != nil {
			value = fmt.Sprintf("%s (%s)", *item.ReferenceTitle, item.Value)
		}
		rows = append(rows, []string{
			uintToString(item.AttributeClassID),
			item.AttributeTitle,
			value,
			formatDate(item.DateEvent),
			uintToString(item.FactID),
		})
	}
	printTable([]string{"ATTR_ID", "ATTRIBUTE", "VALUE", "DATE_EVENT", "FACT_ID"}, rows)
}

func printEntityDetail(d domain.EntityDetail) {
	printKV([][2]string{
		{"id", uintToString(d.Entity.ID)},
		{"class", d.Class.Title},
		{"title", d.Entity.Title},
		{"date_in", formatDate(d.Entity.DateIn)},
		{"date_out", formatDate(d.Entity.DateOut)},
		{"as_of", formatDate(d.AsOf)},
	})
	_, _ = fmt.Fprintln(stdout)
	printAttributeValues(append(append([]domain.AttributeValue{}, d.Attributes...), d.References...))
	if len(d.Outgoing)+len(d.Incoming) > 0 {
		_, _ = fmt.Fprintln(stdout)
		printRelationEdges(append(append([]domain.RelationEdge{}, d.Outgoing...), d.Incoming...))
	}
}

func printFacts(items []domain.Fact) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.ID),
			item.Value,
			formatDate(item.DateEvent),
		})
	}
	printTable([]string{"FACT_ID", "VALUE", "DATE_EVENT"}, rows)
}

func printRelationEdges(items []domain.RelationEdge) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.ID),
			item.FromTitle,
			item.RelationTitle,
			item.ToTitle,
			formatDate(item.DateEvent),
		})
	}
	printTable([]string{"ID", "FROM", "RELATION", "TO", "DATE_EVENT"}, rows)
}

func printLinks(items []domain.Linkage) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			string(item.Kind),
			item.Label,
			uintToString(item.ToEntityID),
			stringOrEmpty(item.ToTitle),
			formatDate(item.DateEvent),
		})
	}
	printTable([]string{"KIND", "LABEL", "TO_ID", "TO", "DATE_EVENT"}, rows)
}

func printUsers(items []domain.User) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.ID),
			item.Email,
			item.Name,
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "EMAIL", "NAME", "CREATED_AT"}, rows)
}

func printRoles(items []domain.Role) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{uintToString(item.ID), item.Key, item.Name})
	}
	printTable([]string{"ID", "KEY", "NAME"}, rows)
}

func printAuditRecords(items []domain.AuditRecord) {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			uintToString(item.ID),
			item.Action,
			item.TargetType,
			formatMaybeUint(item.TargetID),
			item.ActorUserEmail,
			formatTime(item.CreatedAt),
		})
	}
	printTable([]string{"ID", "ACTION", "TARGET_TYPE", "TARGET_ID", "ACTOR", "AT"}, rows)
}
