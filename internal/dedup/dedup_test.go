package dedup

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/CampusClimb/OpportunityHub/internal/collector"
	"github.com/CampusClimb/OpportunityHub/internal/storage"
)

// fakeStore 内存版存储，模拟软删除与公司包含匹配的查询语义
type fakeStore struct {
	mu      sync.Mutex
	nextID  uint
	records []*storage.Opportunity

	failCreate bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1}
}

func (f *fakeStore) FindByIdentity(source, sourceID string) (*storage.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if !r.IsDeleted && r.Source == source && r.SourceID == sourceID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindBySimilarity(title, company, typ string) ([]storage.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cl := strings.ToLower(company)
	var out []storage.Opportunity
	for _, r := range f.records {
		if r.IsDeleted || r.Type != typ {
			continue
		}
		rc := strings.ToLower(r.Company)
		if strings.Contains(rc, cl) || strings.Contains(cl, rc) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) Create(o *storage.Opportunity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errors.New("constraint violation")
	}
	o.ID = f.nextID
	f.nextID++
	cp := *o
	f.records = append(f.records, &cp)
	return nil
}

func (f *fakeStore) Update(o *storage.Opportunity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.records {
		if r.ID == o.ID {
			cp := *o
			f.records[i] = &cp
			return nil
		}
	}
	return errors.New("record not found")
}

func baseCandidate() *collector.Candidate {
	return &collector.Candidate{
		Title:          "[Hiring] Backend Engineer",
		Company:        "Acme",
		Location:       "Remote",
		Type:           collector.TypeJob,
		Category:       "Technology",
		Description:    "Backend role at Acme",
		ApplicationURL: "https://acme.example/jobs/123",
		Source:         "feedA",
		SourceID:       "123",
		SourceURL:      "https://acme.example/jobs/123",
	}
}

func TestUpsertCreateThenExactDuplicate(t *testing.T) {
	store := newFakeStore()
	d := New(store)

	rec1, isNew, err := d.Upsert(baseCandidate())
	if err != nil {
		t.Fatalf("first upsert error: %v", err)
	}
	if !isNew {
		t.Fatalf("first upsert should create")
	}
	if !rec1.AutoFetched {
		t.Fatalf("pipeline-created record must have AutoFetched=true")
	}

	// 完全相同的候选再次提交：命中同一条记录，不新建
	rec2, isNew, err := d.Upsert(baseCandidate())
	if err != nil {
		t.Fatalf("second upsert error: %v", err)
	}
	if isNew {
		t.Fatalf("second upsert should resolve as duplicate")
	}
	if rec2.ID != rec1.ID {
		t.Fatalf("duplicate resolved to different record: %d vs %d", rec2.ID, rec1.ID)
	}
	if len(store.records) != 1 {
		t.Fatalf("store should hold exactly 1 record, got %d", len(store.records))
	}
}

func TestResolveExactIdentityIgnoresOtherFields(t *testing.T) {
	store := newFakeStore()
	d := New(store)

	if _, _, err := d.Upsert(baseCandidate()); err != nil {
		t.Fatalf("seed upsert error: %v", err)
	}

	// 其它字段完全不同，只要 (source, source_id) 相同就按同一条记录处理
	c := baseCandidate()
	c.Title = "Totally different title"
	c.Company = "Different Co"
	c.Type = collector.TypeInternship

	_, isDup, err := d.Resolve(c)
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if !isDup {
		t.Fatalf("same (source, source_id) must resolve as duplicate")
	}
}

func TestResolveFuzzyTitleMatch(t *testing.T) {
	store := newFakeStore()
	d := New(store)

	seed := baseCandidate()
	seed.Title = "Software Engineering Intern"
	seed.Type = collector.TypeInternship
	seed.SourceID = "abc"
	if _, _, err := d.Upsert(seed); err != nil {
		t.Fatalf("seed upsert error: %v", err)
	}

	// 近似标题、同公司同类型、不同源 → 模糊命中
	c := baseCandidate()
	c.Title = "Software Engineer Intern"
	c.Type = collector.TypeInternship
	c.Source = "feedB"
	c.SourceID = "xyz"

	_, isDup, err := d.Resolve(c)
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if !isDup {
		t.Fatalf("near-identical titles should resolve as duplicate at 0.85")
	}

	// 完全不同的标题不命中
	c2 := baseCandidate()
	c2.Title = "Marketing Intern"
	c2.Type = collector.TypeInternship
	c2.Source = "feedB"
	c2.SourceID = "zzz"

	_, isDup, err = d.Resolve(c2)
	if err != nil {
		t.Fatalf("resolve error: %v", err)
	}
	if isDup {
		t.Fatalf("unrelated titles must not resolve as duplicate")
	}
}

func TestUpsertOverwritesOnlyNonEmptyFields(t *testing.T) {
	store := newFakeStore()
	d := New(store)

	seed := baseCandidate()
	seed.Salary = "$120k"
	seed.Requirements = "Go, Postgres"
	if _, _, err := d.Upsert(seed); err != nil {
		t.Fatalf("seed upsert error: %v", err)
	}

	// 第二轮抓取缺了 salary/requirements：不能把已有值抹掉
	c := baseCandidate()
	c.Description = "Updated description"
	c.Salary = ""
	c.Requirements = ""

	rec, isNew, err := d.Upsert(c)
	if err != nil {
		t.Fatalf("upsert error: %v", err)
	}
	if isNew {
		t.Fatalf("should update, not create")
	}
	if rec.Description != "Updated description" {
		t.Fatalf("non-empty field should overwrite: %q", rec.Description)
	}
	if rec.Salary != "$120k" || rec.Requirements != "Go, Postgres" {
		t.Fatalf("empty candidate fields must not null out stored values: %+v", rec)
	}
	if rec.LastFetched.IsZero() {
		t.Fatalf("LastFetched should refresh on duplicate hit")
	}
}

func TestUpsertValidationAndPlaceholders(t *testing.T) {
	store := newFakeStore()
	d := New(store)

	// 缺标题直接报错（候选在上游就该被丢弃，这里是最后防线）
	c := baseCandidate()
	c.Title = ""
	if _, _, err := d.Upsert(c); err == nil {
		t.Fatalf("missing title must fail")
	}

	// 缺描述用占位值顶上，不让整批失败
	c2 := baseCandidate()
	c2.SourceID = "456"
	c2.Description = ""
	c2.Company = ""
	rec, isNew, err := d.Upsert(c2)
	if err != nil {
		t.Fatalf("upsert error: %v", err)
	}
	if !isNew {
		t.Fatalf("expected create")
	}
	if rec.Description == "" {
		t.Fatalf("missing description should get placeholder")
	}
	if rec.Company != "Unknown Company" {
		t.Fatalf("missing company should get placeholder, got %q", rec.Company)
	}
}

func TestUpsertIdempotentRerun(t *testing.T) {
	store := newFakeStore()
	d := New(store)

	batch := []*collector.Candidate{}
	for _, id := range []string{"1", "2", "3"} {
		c := baseCandidate()
		c.SourceID = id
		c.Title = "[Hiring] Engineer " + id
		batch = append(batch, c)
	}

	runOnce := func() (created int) {
		for _, c := range batch {
			_, isNew, err := d.Upsert(c)
			if err != nil {
				t.Fatalf("upsert error: %v", err)
			}
			if isNew {
				created++
			}
		}
		return created
	}

	if n := runOnce(); n != 3 {
		t.Fatalf("first run created %d, want 3", n)
	}
	// 上游数据不变时，重跑一轮不产生任何净新增
	if n := runOnce(); n != 0 {
		t.Fatalf("second run created %d, want 0", n)
	}
	if len(store.records) != 3 {
		t.Fatalf("store should hold 3 records, got %d", len(store.records))
	}
}

func TestTitlesSimilarThresholds(t *testing.T) {
	if !titlesSimilar("Software Engineering Intern", "Software Engineer Intern", 0.85) {
		t.Fatalf("near-identical titles should pass 0.85")
	}
	if titlesSimilar("Software Engineer", "Marketing Intern", 0.85) {
		t.Fatalf("unrelated titles should fail 0.85")
	}
	// 大小写不敏感
	if !titlesSimilar("BACKEND ENGINEER", "backend engineer", 0.85) {
		t.Fatalf("case difference should not matter")
	}
	// 包含关系作为次级判据
	if !titlesSimilar("Backend Engineer", "Senior Backend Engineer (Remote)", 0.85) {
		t.Fatalf("containment should pass")
	}
	if titlesSimilar("", "anything", 0.85) {
		t.Fatalf("empty title never matches")
	}
}
