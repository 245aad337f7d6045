package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"jobmatch-engine/internal/domain"
)

func (d *DB) ListActiveProfiles(ctx context.Context) ([]domain.ProfileVector, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT id, name, keywords, embedding, must_have, must_not_have, allowed_regions, title_keywords, min_score, active
FROM profiles
WHERE active = 1;`)
	if err != nil {
		return nil, wrapUnavailable("list profiles", err)
	}
	defer rows.Close()

	var out []domain.ProfileVector
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapUnavailable("iterate profiles", err)
	}
	return out, nil
}

func (d *DB) GetProfile(ctx context.Context, id string) (domain.ProfileVector, bool, error) {
	row := d.Pool.QueryRowContext(ctx, `
SELECT id, name, keywords, embedding, must_have, must_not_have, allowed_regions, title_keywords, min_score, active
FROM profiles
WHERE id = ?;`, id)

	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ProfileVector{}, false, nil
	}
	if err != nil {
		return domain.ProfileVector{}, false, err
	}
	return p, true, nil
}

// UpsertProfile writes a profile row. The pipeline itself never calls this;
// it exists for the profile-management collaborator and for seeding.
func (d *DB) UpsertProfile(ctx context.Context, p domain.ProfileVector) error {
	keywords, _ := json.Marshal(p.Keywords)
	embedding, _ := json.Marshal(p.Embedding)
	mustHave, _ := json.Marshal(p.MustHave)
	mustNotHave, _ := json.Marshal(p.MustNotHave)
	allowedRegions, _ := json.Marshal(p.AllowedRegions)
	titleKeywords, _ := json.Marshal(p.TitleKeywords)

	active := 0
	if p.Active {
		active = 1
	}

	_, err := d.Pool.ExecContext(ctx, `
INSERT INTO profiles (id, name, keywords, embedding, must_have, must_not_have, allowed_regions, title_keywords, min_score, active)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  name = excluded.name,
  keywords = excluded.keywords,
  embedding = excluded.embedding,
  must_have = excluded.must_have,
  must_not_have = excluded.must_not_have,
  allowed_regions = excluded.allowed_regions,
  title_keywords = excluded.title_keywords,
  min_score = excluded.min_score,
  active = excluded.active;`,
		p.ID, p.Name, string(keywords), string(embedding), string(mustHave), string(mustNotHave),
		string(allowedRegions), string(titleKeywords), p.MinScore, active,
	)
	if err != nil {
		return wrapUnavailable("upsert profile", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (domain.ProfileVector, error) {
	var p domain.ProfileVector
	var keywords, embedding, mustHave, mustNotHave, allowedRegions, titleKeywords string
	var active int
	if err := row.Scan(&p.ID, &p.Name, &keywords, &embedding, &mustHave, &mustNotHave,
		&allowedRegions, &titleKeywords, &p.MinScore, &active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, err
		}
		return p, wrapUnavailable("scan profile", err)
	}
	_ = json.Unmarshal([]byte(keywords), &p.Keywords)
	_ = json.Unmarshal([]byte(embedding), &p.Embedding)
	_ = json.Unmarshal([]byte(mustHave), &p.MustHave)
	_ = json.Unmarshal([]byte(mustNotHave), &p.MustNotHave)
	_ = json.Unmarshal([]byte(allowedRegions), &p.AllowedRegions)
	_ = json.Unmarshal([]byte(titleKeywords), &p.TitleKeywords)
	p.Active = active == 1
	return p, nil
}
