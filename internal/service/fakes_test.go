package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"roofsite-go/internal/model"
	"roofsite-go/pkg/llm"

	"gorm.io/gorm"
)

type fakeSiteRepo struct {
	mu     sync.Mutex
	sites  map[uint]*model.Site
	nextID uint
}

func newFakeSiteRepo(sites ...*model.Site) *fakeSiteRepo {
	r := &fakeSiteRepo{sites: map[uint]*model.Site{}}
	for _, s := range sites {
		r.Create(s)
	}
	return r
}

func (r *fakeSiteRepo) Create(site *model.Site) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if site.ID == 0 {
		r.nextID++
		site.ID = r.nextID
	}
	cp := *site
	r.sites[site.ID] = &cp
	return nil
}

func (r *fakeSiteRepo) FindByID(id uint) (*model.Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sites[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSiteRepo) FindByUserID(userID uint) ([]model.Site, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Site
	for _, s := range r.sites {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeSiteRepo) Update(site *model.Site) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *site
	r.sites[site.ID] = &cp
	return nil
}

type fakeStore struct {
	objects map[string][]byte
	types   map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *fakeStore) Put(_ context.Context, objectName string, data []byte, contentType string) error {
	s.objects[objectName] = data
	s.types[objectName] = contentType
	return nil
}

func (s *fakeStore) PresignedURL(_ context.Context, objectName string, expiry time.Duration) (string, error) {
	if _, ok := s.objects[objectName]; !ok {
		return "", errors.New("no such object")
	}
	return "https://minio.local/published-sites/" + objectName + "?X-Amz-Expires=" + expiry.String(), nil
}

// fakeLLM streams the configured deltas, then returns err.
type fakeLLM struct {
	deltas   []string
	err      error
	calls    int
	messages []llm.Message
}

func (f *fakeLLM) StreamChatMessages(_ context.Context, messages []llm.Message, _ *llm.GenerationParams, w llm.DeltaWriter) error {
	f.calls++
	f.messages = messages
	for _, d := range f.deltas {
		if err := w.WriteDelta(d); err != nil {
			return err
		}
	}
	return f.err
}

func (f *fakeLLM) Complete(ctx context.Context, messages []llm.Message, gen *llm.GenerationParams) (string, error) {
	var out string
	err := f.StreamChatMessages(ctx, messages, gen, llm.DeltaWriterFunc(func(s string) error {
		out += s
		return nil
	}))
	if err != nil {
		return "", err
	}
	return out, nil
}

type turn struct {
	userID           uint
	scope, q, answer string
}

type fakeConversations struct {
	turns []turn
}

func (f *fakeConversations) GetConversationHistory(context.Context, uint, string) ([]model.ChatMessage, error) {
	return nil, nil
}

func (f *fakeConversations) AppendTurn(_ context.Context, userID uint, scope, question, answer string) error {
	f.turns = append(f.turns, turn{userID, scope, question, answer})
	return nil
}

type fakeLeadRepo struct {
	leads map[string]*model.Lead
}

func newFakeLeadRepo() *fakeLeadRepo { return &fakeLeadRepo{leads: map[string]*model.Lead{}} }

func (r *fakeLeadRepo) Create(lead *model.Lead) error {
	lead.ID = uint(len(r.leads) + 1)
	cp := *lead
	r.leads[lead.PublicID] = &cp
	return nil
}

func (r *fakeLeadRepo) FindByPublicID(publicID string) (*model.Lead, error) {
	l, ok := r.leads[publicID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *fakeLeadRepo) FindBySiteID(siteID uint, offset, limit int) ([]model.Lead, int64, error) {
	var out []model.Lead
	for _, l := range r.leads {
		if l.SiteID == siteID {
			out = append(out, *l)
		}
	}
	total := int64(len(out))
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (r *fakeLeadRepo) UpdateStatus(publicID, status string) error {
	l, ok := r.leads[publicID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	l.Status = status
	return nil
}

type fakeProducer struct {
	events []model.LeadSubmittedEvent
	err    error
}

func (p *fakeProducer) ProduceLead(_ context.Context, event model.LeadSubmittedEvent) error {
	p.events = append(p.events, event)
	return p.err
}

type fakeBlogRepo struct {
	posts []model.BlogPost
}

func (r *fakeBlogRepo) Create(post *model.BlogPost) error {
	post.ID = uint(len(r.posts) + 1)
	r.posts = append(r.posts, *post)
	return nil
}

func (r *fakeBlogRepo) FindByUserID(userID uint) ([]model.BlogPost, error) {
	var out []model.BlogPost
	for _, p := range r.posts {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	users map[string]*model.User
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]*model.User{}}
	for _, u := range users {
		r.Create(u)
	}
	return r
}

func (r *fakeUserRepo) Create(user *model.User) error {
	if user.ID == 0 {
		user.ID = uint(len(r.users) + 1)
	}
	r.users[user.Username] = user
	return nil
}

func (r *fakeUserRepo) FindByUsername(username string) (*model.User, error) {
	u, ok := r.users[username]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) FindByID(id uint) (*model.User, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) Update(user *model.User) error {
	r.users[user.Username] = user
	return nil
}

type fakeBilling struct {
	customer string
	created  int
}

func (f *fakeBilling) CreateCustomer(_ context.Context, _ string, userID uint) (string, error) {
	f.created++
	return fmt.Sprintf("cus_new_%d", userID), nil
}

func (f *fakeBilling) CreatePortalSession(_ context.Context, customerID string) (string, error) {
	f.customer = customerID
	return "https://portal.example/" + customerID, nil
}
