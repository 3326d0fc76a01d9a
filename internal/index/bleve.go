package index

import (
	"context"
	"fmt"
	"sort"

	"github.com/blevesearch/bleve/v2"
	bleveapi "github.com/blevesearch/bleve_index_api"

	"github.com/hyperjump/reteval/internal/models"
)

// DefaultBleveField is the field read from bleve indexes when none is configured.
const DefaultBleveField = "content"

// OpenBleve opens the bleve index at path and reads field into a collection snapshot.
func OpenBleve(ctx context.Context, path, field string) (*models.Collection, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Bleve index: %w", err)
	}
	defer idx.Close()
	return CollectionFromBleve(ctx, idx, field)
}

// CollectionFromBleve reads the term dictionary and postings of one field of idx.
// Document ids are assigned in ascending order of the external bleve id, term ids in
// dictionary order. A document's length is the sum of its term frequencies in field.
func CollectionFromBleve(ctx context.Context, idx bleve.Index, field string) (*models.Collection, error) {
	if field == "" {
		field = DefaultBleveField
	}
	adv, err := idx.Advanced()
	if err != nil {
		return nil, fmt.Errorf("failed to access Bleve index internals: %w", err)
	}
	reader, err := adv.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open Bleve reader: %w", err)
	}
	defer reader.Close()

	docs, docIDs, err := readDocuments(reader)
	if err != nil {
		return nil, err
	}
	terms, err := readDictionary(reader, field)
	if err != nil {
		return nil, err
	}

	c := &models.Collection{Documents: docs}
	for _, term := range terms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		postings, err := readPostings(ctx, reader, term, field, docIDs)
		if err != nil {
			return nil, err
		}
		if len(postings) == 0 {
			continue
		}
		for _, p := range postings {
			c.Documents[p.DocID-1].Length += p.TermFreq
		}
		c.Terms = append(c.Terms, term)
		c.Postings = append(c.Postings, postings)
	}
	return c, nil
}

func readDocuments(reader bleveapi.IndexReader) ([]models.DocumentInfo, map[string]int, error) {
	it, err := reader.DocIDReaderAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list Bleve documents: %w", err)
	}
	defer it.Close()

	type entry struct {
		internal string
		name     string
	}
	var entries []entry
	for {
		id, err := it.Next()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read Bleve document id: %w", err)
		}
		if id == nil {
			break
		}
		name, err := reader.ExternalID(id)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to resolve Bleve document id: %w", err)
		}
		entries = append(entries, entry{internal: string(id), name: name})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })

	docs := make([]models.DocumentInfo, len(entries))
	docIDs := make(map[string]int, len(entries))
	for i, e := range entries {
		docs[i] = models.DocumentInfo{Name: e.name}
		docIDs[e.internal] = i + 1
	}
	return docs, docIDs, nil
}

func readDictionary(reader bleveapi.IndexReader, field string) ([]string, error) {
	dict, err := reader.FieldDict(field)
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary of field %q: %w", field, err)
	}
	defer dict.Close()

	var terms []string
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to read dictionary of field %q: %w", field, err)
		}
		if entry == nil {
			break
		}
		if entry.Term != "" {
			terms = append(terms, entry.Term)
		}
	}
	return terms, nil
}

func readPostings(ctx context.Context, reader bleveapi.IndexReader, term, field string, docIDs map[string]int) ([]models.Posting, error) {
	tfr, err := reader.TermFieldReader(ctx, []byte(term), field, true, false, false)
	if err != nil {
		return nil, fmt.Errorf("failed to read postings of %q: %w", term, err)
	}
	defer tfr.Close()

	var postings []models.Posting
	for {
		tfd, err := tfr.Next(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read postings of %q: %w", term, err)
		}
		if tfd == nil {
			break
		}
		docID, ok := docIDs[string(tfd.ID)]
		if !ok || tfd.Freq == 0 {
			continue
		}
		postings = append(postings, models.Posting{DocID: docID, TermFreq: int(tfd.Freq)})
	}
	sort.Slice(postings, func(i, j int) bool { return postings[i].DocID < postings[j].DocID })
	return postings, nil
}
