package inmemdb

import (
	"context"
	"sort"

	"github.com/Syed-Nuhad/school-web-sub000/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CreateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	st.ID = repo.db.nextID("students")
	repo.db.data.students[st.ID] = st
	return st, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, id int) (student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if st, ok := repo.db.data.students[id]; ok {
		return st, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.data.students[st.ID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	st.CreatedAt = orig.CreatedAt
	repo.db.data.students[st.ID] = st
	return st, nil
}

func (repo *studentRepository) ListActiveStudents(ctx context.Context) ([]student.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]student.Student, 0, len(repo.db.data.students))
	for _, st := range repo.db.data.students {
		if st.IsActive {
			students = append(students, st)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	return students, nil
}

func (repo *studentRepository) CreateClass(ctx context.Context, cls student.Class) (student.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	cls.ID = repo.db.nextID("classes")
	repo.db.data.classes[cls.ID] = cls
	return cls, nil
}

func (repo *studentRepository) GetClass(ctx context.Context, id int) (student.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if cls, ok := repo.db.data.classes[id]; ok {
		return cls, nil
	}
	return student.Class{}, student.ErrClassNotFound
}

