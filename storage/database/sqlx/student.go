package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Syed-Nuhad/school-web-sub000/core/student"
)

const studentColumns = `id, name, email, phone, guardian_phone, class_id, monthly_fee, is_active, created_at`

type studentRepository struct {
	scope
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{scope{db: db}}
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo *studentRepository) CreateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	q := `INSERT INTO students (name, email, phone, guardian_phone, class_id, monthly_fee, is_active, created_at)
		VALUES (:name, :email, :phone, :guardian_phone, :class_id, :monthly_fee, :is_active, :created_at)
		RETURNING id`
	q, args, err := sqlx.Named(q, st)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "binding student")
	}
	if err = sqlx.GetContext(ctx, repo.ext(), &st.ID, repo.db.Rebind(q), args...); err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return st, nil
}

func (repo *studentRepository) GetStudent(ctx context.Context, id int) (student.Student, error) {
	var st student.Student
	err := sqlx.GetContext(ctx, repo.ext(), &st, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id)
	if err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "getting student")
	}
	return st, nil
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, st student.Student) (student.Student, error) {
	q := `UPDATE students SET name = :name, email = :email, phone = :phone, guardian_phone = :guardian_phone,
		class_id = :class_id, monthly_fee = :monthly_fee, is_active = :is_active
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.ext(), q, st)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return st, nil
}

func (repo *studentRepository) ListActiveStudents(ctx context.Context) ([]student.Student, error) {
	students := make([]student.Student, 0)
	err := sqlx.SelectContext(ctx, repo.ext(), &students,
		`SELECT `+studentColumns+` FROM students WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "listing active students")
	}
	return students, nil
}

func (repo *studentRepository) CreateClass(ctx context.Context, cls student.Class) (student.Class, error) {
	err := sqlx.GetContext(ctx, repo.ext(), &cls.ID,
		`INSERT INTO classes (name, monthly_fee) VALUES ($1, $2) RETURNING id`, cls.Name, cls.MonthlyFee)
	if err != nil {
		return student.Class{}, errors.Wrap(err, "inserting class")
	}
	return cls, nil
}

func (repo *studentRepository) GetClass(ctx context.Context, id int) (student.Class, error) {
	var cls student.Class
	err := sqlx.GetContext(ctx, repo.ext(), &cls, `SELECT id, name, monthly_fee FROM classes WHERE id = $1`, id)
	if err != nil {
		return student.Class{}, trapNoRowsErr(err, student.ErrClassNotFound, "getting class")
	}
	return cls, nil
}
